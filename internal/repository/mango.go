package repository

import (
	"context"

	"github.com/go-kivik/kivik/v4"
	"github.com/pkg/errors"
)

// CouchDB returns at most 25 rows for a Mango query without an explicit limit.
const findPageSize = 500

// findAll runs a Mango selector and pages through every matching document.
func findAll[T any](ctx context.Context, db *kivik.DB, selector map[string]interface{}) ([]*T, error) {
	var docs []*T

	for skip := 0; ; skip += findPageSize {
		page, err := findPage[T](ctx, db, map[string]interface{}{
			"selector": selector,
			"limit":    findPageSize,
			"skip":     skip,
		})
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)

		if len(page) < findPageSize {
			return docs, nil
		}
	}
}

// findOne returns the first document matching selector, or nil.
func findOne[T any](ctx context.Context, db *kivik.DB, selector map[string]interface{}) (*T, error) {
	page, err := findPage[T](ctx, db, map[string]interface{}{
		"selector": selector,
		"limit":    1,
	})
	if err != nil || len(page) == 0 {
		return nil, err
	}
	return page[0], nil
}

func findPage[T any](ctx context.Context, db *kivik.DB, query map[string]interface{}) ([]*T, error) {
	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to run query")
	}
	defer rows.Close()

	var docs []*T
	for rows.Next() {
		var doc T
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate query results")
	}

	return docs, nil
}
