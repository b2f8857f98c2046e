package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/missingalert/missing-alert-api/models"
)

type mongoPaginate struct {
	limit int64
	skip  int64
}

func newMongoPaginate(window models.PageWindow) *mongoPaginate {
	return &mongoPaginate{
		limit: window.Limit,
		skip:  window.Skip,
	}
}

func (mp *mongoPaginate) getPaginatedOpts(sort models.CaseSort) *options.FindOptions {
	fOpt := options.Find()
	if mp.limit > 0 {
		fOpt.SetLimit(mp.limit)
	}
	if mp.skip > 0 {
		fOpt.SetSkip(mp.skip)
	}
	if sort.Field != "" {
		direction := 1
		if sort.Descending {
			direction = -1
		}
		fOpt.SetSort(bson.D{{Key: sort.Field, Value: direction}})
	}
	return fOpt
}
