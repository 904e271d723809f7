package persistence

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/company"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// openDocumentStatuses are the statuses an allocation may target
var openDocumentStatuses = []settlement.DocumentStatus{
	settlement.DocumentStatusPending,
	settlement.DocumentStatusPartial,
}

// GormDocumentRepository implements settlement.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// Create inserts a new document
func (r *GormDocumentRepository) Create(ctx context.Context, doc *settlement.Document) error {
	return r.db.WithContext(ctx).Create(models.DocumentModelFromDomain(doc)).Error
}

// Update saves the document with a version check and bumps its version
func (r *GormDocumentRepository) Update(ctx context.Context, doc *settlement.Document) error {
	m := models.DocumentModelFromDomain(doc)
	m.Version = doc.Version + 1
	if err := saveVersioned(ctx, r.db, "document", doc.ID, doc.Version, m); err != nil {
		return err
	}
	doc.Version = m.Version
	return nil
}

// FindByID finds a document by ID within a company
func (r *GormDocumentRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*settlement.Document, error) {
	return r.find(r.db.WithContext(ctx), companyID, id)
}

// FindByIDForUpdate finds and row-locks a document
func (r *GormDocumentRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*settlement.Document, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), companyID, id)
}

func (r *GormDocumentRepository) find(db *gorm.DB, companyID, id uuid.UUID) (*settlement.Document, error) {
	var m models.DocumentModel
	if err := db.Scopes(company.Scope(companyID)).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "document", id)
	}
	return m.ToDomain(), nil
}

// FindByIDsForUpdate row-locks the documents in ascending id order so two
// allocations touching overlapping documents always queue in the same order.
func (r *GormDocumentRepository) FindByIDsForUpdate(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*settlement.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })

	var ms []models.DocumentModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(company.Scope(companyID)).Where("id IN ?", sorted).
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*settlement.Document, len(ms))
	for i := range ms {
		byID[ms[i].ID] = ms[i].ToDomain()
	}
	docs := make([]*settlement.Document, 0, len(sorted))
	for _, id := range sorted {
		d, ok := byID[id]
		if !ok {
			return nil, &settlement.NotFoundError{Entity: "document", ID: id.String()}
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// FindOpen lists pending and partial documents of a party in one direction,
// oldest due date first with id as tie breaker
func (r *GormDocumentRepository) FindOpen(ctx context.Context, companyID, partyID uuid.UUID, direction settlement.DocumentDirection) ([]*settlement.Document, error) {
	var ms []models.DocumentModel
	err := r.db.WithContext(ctx).
		Scopes(company.Scope(companyID)).Where("party_id = ? AND direction = ? AND status IN ?", partyID, direction, openDocumentStatuses).
		Order("due_date ASC, id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return documentsToDomain(ms), nil
}

// FindOpenDueBetween lists open documents due in [from, to]
func (r *GormDocumentRepository) FindOpenDueBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]*settlement.Document, error) {
	var ms []models.DocumentModel
	err := r.db.WithContext(ctx).
		Scopes(company.Scope(companyID)).Where("status IN ? AND due_date >= ? AND due_date <= ?", openDocumentStatuses, from, to).
		Order("due_date ASC, id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return documentsToDomain(ms), nil
}

// HasActiveReversal reports whether a non-cancelled reversal of the document exists
func (r *GormDocumentRepository) HasActiveReversal(ctx context.Context, companyID, originalID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Scopes(company.Scope(companyID)).Where("reversal_of_id = ? AND status <> ?", originalID, settlement.DocumentStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

// List returns one page of documents matching the filter
func (r *GormDocumentRepository) List(ctx context.Context, companyID uuid.UUID, filter settlement.DocumentFilter) (settlement.DocumentPage, error) {
	scoped := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&models.DocumentModel{}).Scopes(company.Scope(companyID)), filter)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return settlement.DocumentPage{}, err
	}

	page, pageSize := filter.Normalize()
	var ms []models.DocumentModel
	err := scoped().
		Clauses(DocumentSortFields.OrderBy(filter.OrderBy, filter.OrderDir, "due_date")).
		Offset(filter.Offset()).
		Limit(pageSize).
		Find(&ms).Error
	if err != nil {
		return settlement.DocumentPage{}, err
	}
	return shared.NewPaginated(documentsToDomain(ms), total, page, pageSize), nil
}

// applyFilter applies filter options to the query
func (r *GormDocumentRepository) applyFilter(query *gorm.DB, filter settlement.DocumentFilter) *gorm.DB {
	if filter.PartyID != nil {
		query = query.Where("party_id = ?", *filter.PartyID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", *filter.DueTo)
	}
	if filter.Search != "" {
		query = query.Where("number LIKE ?", "%"+filter.Search+"%")
	}
	return query
}

func documentsToDomain(ms []models.DocumentModel) []*settlement.Document {
	docs := make([]*settlement.Document, 0, len(ms))
	for i := range ms {
		docs = append(docs, ms[i].ToDomain())
	}
	return docs
}

// Ensure GormDocumentRepository implements settlement.DocumentRepository
var _ settlement.DocumentRepository = (*GormDocumentRepository)(nil)
