package repository

import (
	"context"
	"log/slog"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/medimage2report/constants"
)

const (
	tableDocuments        = "documents"
	tableReports          = "structured_reports"
	tableFindings         = "findings"
	tableProcessingErrors = "processing_errors"

	// textSize maps to an unbounded text column on every dialect.
	textSize = 2147483647
)

var (
	// DocumentsColumns holds the columns for the "documents" table.
	DocumentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "owner_id", Type: field.TypeString, Size: 128},
		{Name: "original_filename", Type: field.TypeString, Size: 255},
		{Name: "content", Type: field.TypeBytes},
		{Name: "content_sha256", Type: field.TypeString, Size: 64},
		{Name: "status", Type: field.TypeEnum, Enums: constants.DocumentStatuses, Default: string(constants.StatusUploaded)},
		{Name: "uploaded_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// DocumentsTable holds the schema information for the "documents" table.
	DocumentsTable = &schema.Table{
		Name:       tableDocuments,
		Columns:    DocumentsColumns,
		PrimaryKey: []*schema.Column{DocumentsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "document_owner_id_uploaded_at", Columns: []*schema.Column{DocumentsColumns[1], DocumentsColumns[6]}},
			{Name: "document_owner_id_content_sha256", Columns: []*schema.Column{DocumentsColumns[1], DocumentsColumns[4]}},
		},
	}

	// StructuredReportsColumns holds the columns for the "structured_reports" table.
	StructuredReportsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "document_id", Type: field.TypeUUID},
		{Name: "attempt_id", Type: field.TypeUUID},
		{Name: "company", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "sequences", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "method", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "region", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "modality", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "short_text", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "long_text", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "quality", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "locales", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "provider", Type: field.TypeString, Size: 64},
		{Name: "model", Type: field.TypeString, Nullable: true, Size: 128},
		{Name: "schema_version", Type: field.TypeString, Size: 32},
		{Name: "raw_response", Type: field.TypeString, Nullable: true, Size: textSize},
		{Name: "created_at", Type: field.TypeTime},
	}
	// StructuredReportsTable holds the schema information for the "structured_reports" table.
	StructuredReportsTable = &schema.Table{
		Name:       tableReports,
		Columns:    StructuredReportsColumns,
		PrimaryKey: []*schema.Column{StructuredReportsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "structured_reports_documents_reports",
				Columns:    []*schema.Column{StructuredReportsColumns[1]},
				RefColumns: []*schema.Column{DocumentsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "structuredreport_document_id_created_at", Columns: []*schema.Column{StructuredReportsColumns[1], StructuredReportsColumns[16]}},
		},
	}

	// FindingsColumns holds the columns for the "findings" table.
	FindingsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "report_id", Type: field.TypeUUID},
		{Name: "position", Type: field.TypeInt},
		{Name: "finding_type", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "location", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "value", Type: field.TypeString, Nullable: true, Size: 255},
		{Name: "unit", Type: field.TypeString, Nullable: true, Size: 64},
		{Name: "significance", Type: field.TypeString, Nullable: true, Size: textSize},
	}
	// FindingsTable holds the schema information for the "findings" table.
	FindingsTable = &schema.Table{
		Name:       tableFindings,
		Columns:    FindingsColumns,
		PrimaryKey: []*schema.Column{FindingsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "findings_structured_reports_findings",
				Columns:    []*schema.Column{FindingsColumns[1]},
				RefColumns: []*schema.Column{StructuredReportsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "finding_report_id_position", Unique: true, Columns: []*schema.Column{FindingsColumns[1], FindingsColumns[2]}},
		},
	}

	// ProcessingErrorsColumns holds the columns for the "processing_errors" table.
	ProcessingErrorsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "document_id", Type: field.TypeUUID},
		{Name: "attempt_id", Type: field.TypeUUID},
		{Name: "kind", Type: field.TypeString, Size: 64},
		{Name: "message", Type: field.TypeString, Size: textSize},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ProcessingErrorsTable holds the schema information for the "processing_errors" table.
	ProcessingErrorsTable = &schema.Table{
		Name:       tableProcessingErrors,
		Columns:    ProcessingErrorsColumns,
		PrimaryKey: []*schema.Column{ProcessingErrorsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "processing_errors_documents_errors",
				Columns:    []*schema.Column{ProcessingErrorsColumns[1]},
				RefColumns: []*schema.Column{DocumentsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "processingerror_document_id_created_at", Columns: []*schema.Column{ProcessingErrorsColumns[1], ProcessingErrorsColumns[5]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		DocumentsTable,
		StructuredReportsTable,
		FindingsTable,
		ProcessingErrorsTable,
	}
)

func init() {
	StructuredReportsTable.ForeignKeys[0].RefTable = DocumentsTable
	FindingsTable.ForeignKeys[0].RefTable = StructuredReportsTable
	ProcessingErrorsTable.ForeignKeys[0].RefTable = DocumentsTable
}

// Migrate creates or upgrades all tables.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := schema.NewMigrate(db.Driver(), schema.WithForeignKeys(true))
	if err != nil {
		logger.Error("db.migrate.init_failed", "error", err)
		return err
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("db.migrate.failed", "error", err)
		return err
	}
	logger.Info("db.migrate.ok", "dialect", db.Dialect(), "tables", len(Tables))
	return nil
}
