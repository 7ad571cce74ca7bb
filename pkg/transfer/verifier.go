// pkg/transfer/verifier.go
package transfer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/converter"
	"github.com/David-Botos/sales-ingress/pkg/model"
)

// StructureDiscrepancy represents a column present on only one side
type StructureDiscrepancy struct {
	ColumnName      string
	MissingInTarget bool // column of the clean table absent from the target
	UnexpectedExtra bool // target column the clean table does not have
}

// IntegrityIssue represents a data integrity issue in a loaded table
type IntegrityIssue struct {
	IssueType    string
	Description  string
	ColumnName   string
	AffectedRows int64
}

// VerificationReport contains the results of a table verification
type VerificationReport struct {
	Table                  string
	VerificationTime       time.Time
	RowCountMatches        bool
	ExpectedRowCount       int64
	TargetRowCount         int64
	StructureMatches       bool
	StructureDiscrepancies []StructureDiscrepancy
	IntegrityVerified      bool
	IntegrityIssues        []IntegrityIssue
	Duration               time.Duration
}

// Passed reports whether every check succeeded
func (r *VerificationReport) Passed() bool {
	return r.RowCountMatches && r.StructureMatches && r.IntegrityVerified
}

// Verifier checks a loaded target table against the clean table it was
// loaded from
type Verifier struct {
	target  connector.DatabaseConnector
	schema  string
	logger  *zap.Logger
	timeout time.Duration
}

// NewVerifier creates a new verifier for tables in schema
func NewVerifier(target connector.DatabaseConnector, schema string, logger *zap.Logger) *Verifier {
	return &Verifier{
		target:  target,
		schema:  schema,
		logger:  logger.Named("verifier"),
		timeout: time.Minute * 5, // Default 5-minute timeout
	}
}

// WithTimeout sets a custom timeout for verification operations
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

func (v *Verifier) quotedTable(table string) string {
	return converter.QuoteTable(&model.TableMetadata{Schema: v.schema, Table: table})
}

// VerifyRowCount verifies the target holds exactly the clean rows
func (v *Verifier) VerifyRowCount(ctx context.Context, clean *model.Table, table string) (bool, int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var targetCount int64
	if err := v.target.DB().GetContext(ctx, &targetCount, "SELECT COUNT(*) FROM "+v.quotedTable(table)); err != nil {
		return false, 0, 0, fmt.Errorf("failed to count target rows: %w", err)
	}

	expected := int64(clean.Len())
	matches := expected == targetCount
	if matches {
		v.logger.Info("Row count verification successful",
			zap.String("table", table),
			zap.Int64("count", targetCount))
	} else {
		v.logger.Warn("Row count mismatch",
			zap.String("table", table),
			zap.Int64("expectedCount", expected),
			zap.Int64("targetCount", targetCount),
			zap.Int64("difference", expected-targetCount))
	}

	return matches, expected, targetCount, nil
}

// VerifyTableStructure compares the target columns with the clean table's
func (v *Verifier) VerifyTableStructure(ctx context.Context, clean *model.Table, table string) (bool, []StructureDiscrepancy, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	rows, err := v.target.DB().QueryxContext(ctx, "SELECT * FROM "+v.quotedTable(table)+" WHERE 1 = 0")
	if err != nil {
		return false, nil, fmt.Errorf("failed to query target columns: %w", err)
	}
	defer rows.Close()

	targetColumns, err := rows.Columns()
	if err != nil {
		return false, nil, fmt.Errorf("failed to read target columns: %w", err)
	}

	present := make(map[string]bool, len(targetColumns))
	for _, c := range targetColumns {
		present[c] = true
	}

	discrepancies := make([]StructureDiscrepancy, 0)
	for _, c := range clean.ColumnNames() {
		if !present[c] {
			discrepancies = append(discrepancies, StructureDiscrepancy{ColumnName: c, MissingInTarget: true})
		}
		delete(present, c)
	}
	for _, c := range targetColumns {
		if present[c] {
			discrepancies = append(discrepancies, StructureDiscrepancy{ColumnName: c, UnexpectedExtra: true})
		}
	}

	for _, d := range discrepancies {
		v.logger.Warn("Structure discrepancy",
			zap.String("table", table),
			zap.String("column", d.ColumnName),
			zap.Bool("missingInTarget", d.MissingInTarget),
			zap.Bool("unexpectedExtra", d.UnexpectedExtra))
	}

	return len(discrepancies) == 0, discrepancies, nil
}

// VerifyDataIntegrity checks that fully populated clean columns were not
// loaded with NULLs and, when keyColumn is set, that it is unique
func (v *Verifier) VerifyDataIntegrity(ctx context.Context, clean *model.Table, table, keyColumn string) (bool, []IntegrityIssue, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	metadata := model.MetadataFor(clean, v.schema, table)

	issues, err := v.checkNullConstraints(ctx, metadata)
	if err != nil {
		return false, nil, err
	}

	if keyColumn != "" && metadata.GetColumnByName(keyColumn) != nil {
		keyIssues, err := v.checkKeyUniqueness(ctx, metadata, keyColumn)
		if err != nil {
			return false, nil, err
		}
		issues = append(issues, keyIssues...)
	}

	return len(issues) == 0, issues, nil
}

// GenerateVerificationReport runs every check and collects the outcome
func (v *Verifier) GenerateVerificationReport(ctx context.Context, clean *model.Table, table, keyColumn string) (*VerificationReport, error) {
	startTime := time.Now()
	report := &VerificationReport{
		Table:            table,
		VerificationTime: startTime,
	}

	// 1. Verify row count
	rowCountMatch, expected, targetCount, err := v.VerifyRowCount(ctx, clean, table)
	if err != nil {
		return nil, err
	}
	report.RowCountMatches = rowCountMatch
	report.ExpectedRowCount = expected
	report.TargetRowCount = targetCount

	// 2. Verify table structure
	structureMatch, discrepancies, err := v.VerifyTableStructure(ctx, clean, table)
	if err != nil {
		return nil, err
	}
	report.StructureMatches = structureMatch
	report.StructureDiscrepancies = discrepancies

	// 3. Verify data integrity, only meaningful on a matching structure
	if structureMatch {
		integrityMatch, issues, err := v.VerifyDataIntegrity(ctx, clean, table, keyColumn)
		if err != nil {
			v.logger.Warn("Integrity verification failed",
				zap.String("table", table),
				zap.Error(err))
		} else {
			report.IntegrityVerified = integrityMatch
			report.IntegrityIssues = issues
		}
	}

	report.Duration = time.Since(startTime)

	v.logger.Info("Verification report completed",
		zap.String("table", table),
		zap.Duration("duration", report.Duration),
		zap.Bool("rowCountMatch", report.RowCountMatches),
		zap.Bool("structureMatch", report.StructureMatches),
		zap.Bool("integrityVerified", report.IntegrityVerified))

	return report, nil
}

// checkNullConstraints verifies that non-nullable columns don't contain NULL values
func (v *Verifier) checkNullConstraints(ctx context.Context, metadata *model.TableMetadata) ([]IntegrityIssue, error) {
	issues := make([]IntegrityIssue, 0)

	for _, col := range metadata.Columns {
		if col.Nullable {
			continue
		}

		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL",
			converter.QuoteTable(metadata), converter.QuoteIdentifier(col.Name))

		var nullCount int64
		if err := v.target.DB().GetContext(ctx, &nullCount, query); err != nil {
			return nil, fmt.Errorf("failed to check null constraint for column %s: %w", col.Name, err)
		}

		if nullCount > 0 {
			issues = append(issues, IntegrityIssue{
				IssueType:    "NULL_CONSTRAINT_VIOLATION",
				Description:  "Non-nullable column contains NULL values",
				ColumnName:   col.Name,
				AffectedRows: nullCount,
			})
			v.logger.Warn("NULL constraint violation",
				zap.String("table", metadata.FullName()),
				zap.String("column", col.Name),
				zap.Int64("nullCount", nullCount))
		}
	}

	return issues, nil
}

// checkKeyUniqueness counts rows sharing a value of the key column
func (v *Verifier) checkKeyUniqueness(ctx context.Context, metadata *model.TableMetadata, keyColumn string) ([]IntegrityIssue, error) {
	key := converter.QuoteIdentifier(keyColumn)
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(n), 0) FROM (
			SELECT COUNT(*) AS n FROM %s
			WHERE %s IS NOT NULL
			GROUP BY %s HAVING COUNT(*) > 1
		) dup`, converter.QuoteTable(metadata), key, key)

	var duplicated int64
	if err := v.target.DB().GetContext(ctx, &duplicated, query); err != nil {
		return nil, fmt.Errorf("failed to check uniqueness of %s: %w", keyColumn, err)
	}

	if duplicated == 0 {
		return nil, nil
	}

	v.logger.Warn("Duplicate key values",
		zap.String("table", metadata.FullName()),
		zap.String("column", keyColumn),
		zap.Int64("rows", duplicated))

	return []IntegrityIssue{{
		IssueType:    "DUPLICATE_KEY",
		Description:  "Key column holds duplicate values",
		ColumnName:   keyColumn,
		AffectedRows: duplicated,
	}}, nil
}
