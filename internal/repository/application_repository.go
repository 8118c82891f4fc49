package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/finlink/reports-api/internal/models"
)

const applicationColumns = `id, reference, lender, retailer, bdm, finance_product, prime_class,
loan_amount, commission_amount, submitted_at, approved_at, declined_at, contract_signed_at,
live_at, cancelled_at, expired_at`

// ApplicationRepository reads synced finance-application records. The table is
// owned by the sync pipeline; this repository never writes to it.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Fetch returns the base record set for the report type with every filter
// clause that maps to a stored column pushed down into the query. The status
// clause is not pushed down because status is derived from milestone dates;
// callers apply it client-side.
func (r *ApplicationRepository) Fetch(ctx context.Context, reportType models.ReportType, filters models.ReportFilters) ([]models.ApplicationRecord, error) {
	where := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)

	if reportType == models.ReportTypeAP {
		where = append(where, "approved_at IS NOT NULL")
	}
	if filters.DateFrom != nil {
		where = append(where, "submitted_at >= ?")
		args = append(args, *filters.DateFrom)
	}
	if filters.DateTo != nil {
		where = append(where, "submitted_at <= ?")
		args = append(args, *filters.DateTo)
	}
	if len(filters.Lenders) > 0 {
		where = append(where, "lender IN (?)")
		args = append(args, filters.Lenders)
	}
	if len(filters.Retailers) > 0 {
		where = append(where, "retailer IN (?)")
		args = append(args, filters.Retailers)
	}
	if len(filters.BDMs) > 0 {
		where = append(where, "bdm IN (?)")
		args = append(args, filters.BDMs)
	}
	if len(filters.FinanceProducts) > 0 {
		where = append(where, "finance_product IN (?)")
		args = append(args, filters.FinanceProducts)
	}
	if len(filters.PrimeClasses) > 0 {
		where = append(where, "prime_class IN (?)")
		args = append(args, filters.PrimeClasses)
	}

	query := fmt.Sprintf("SELECT %s FROM application_records", applicationColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at ASC"

	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand record query: %w", err)
	}
	expanded = r.db.Rebind(expanded)

	var records []models.ApplicationRecord
	if err := r.db.SelectContext(ctx, &records, expanded, expandedArgs...); err != nil {
		return nil, fmt.Errorf("fetch application records: %w", err)
	}
	return records, nil
}
