// Package company scopes GORM queries to a single company.
//
// Every settlement table carries a company_id column and no query may read
// or write rows of another company. Repositories apply the scope explicitly:
//
//	db.Scopes(company.Scope(companyID)).Where("id = ?", id).First(&m)
//
// A nil company ID never widens a query; the statement fails with
// ErrCompanyIDRequired instead.
package company

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column is the company column shared by all settlement tables
const Column = "company_id"

// ErrCompanyIDRequired is returned when a scoped statement has no company
var ErrCompanyIDRequired = errors.New("company_id is required")

// Scope restricts a statement to the rows of one company
func Scope(companyID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if companyID == uuid.Nil {
			_ = db.AddError(ErrCompanyIDRequired)
			return db
		}
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: Column},
			Value:  companyID,
		})
	}
}
