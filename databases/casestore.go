package databases

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/missingalert/missing-alert-api/models"
)

// CaseStore adapts a CaseDatabase to the persistence operations the case lifecycle
// needs, translating typed filters into mongo queries.
type CaseStore struct {
	DB CaseDatabase
}

// NewCaseStore returns a CaseStore over db
func NewCaseStore(db CaseDatabase) *CaseStore {
	return &CaseStore{DB: db}
}

// FindByID returns the case with the given id or apperrors.ErrNotFound
func (s *CaseStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Case, error) {
	return s.DB.FindOne(ctx, bson.M{"_id": id})
}

// Save writes the whole case document in a single upsert
func (s *CaseStore) Save(ctx context.Context, c *models.Case) error {
	if c.ID.IsZero() {
		return fmt.Errorf("save case: missing id")
	}
	return s.DB.ReplaceOne(ctx, bson.M{"_id": c.ID}, *c, options.Replace().SetUpsert(true))
}

// CountCreatedBetween counts cases with start <= createdAt < end
func (s *CaseStore) CountCreatedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	return s.DB.CountDocuments(ctx, bson.M{
		"createdAt": bson.M{"$gte": start, "$lt": end},
	})
}

// FindMany returns the cases matching filter, ordered by sort, within window
func (s *CaseStore) FindMany(ctx context.Context, filter models.CaseFilter, sort models.CaseSort, window models.PageWindow) ([]models.Case, error) {
	cases, err := s.DB.Find(ctx, BuildCaseFilter(filter), newMongoPaginate(window).getPaginatedOpts(sort))
	if err != nil {
		return nil, err
	}
	if cases == nil {
		cases = []models.Case{}
	}
	return cases, nil
}

// CountMatching counts the cases matching filter
func (s *CaseStore) CountMatching(ctx context.Context, filter models.CaseFilter) (int64, error) {
	return s.DB.CountDocuments(ctx, BuildCaseFilter(filter))
}

// BuildCaseFilter translates a CaseFilter into a mongo filter document. Search is a
// case-insensitive substring match over name, case number and city.
func BuildCaseFilter(f models.CaseFilter) bson.M {
	filter := bson.M{}
	if f.ReportedBy != nil {
		filter["reportedBy"] = *f.ReportedBy
	}
	if f.PublicOnly {
		filter["isPublic"] = true
	}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	switch {
	case f.Status != "":
		filter["status"] = f.Status
	case f.ExcludeStatus != "":
		filter["status"] = bson.M{"$ne": f.ExcludeStatus}
	}
	if !f.CreatedSince.IsZero() {
		filter["createdAt"] = bson.M{"$gte": f.CreatedSince}
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = []bson.M{
			{"missingPerson.name": pattern},
			{"caseNumber": pattern},
			{"lastKnownLocation.city": pattern},
		}
	}
	return filter
}
