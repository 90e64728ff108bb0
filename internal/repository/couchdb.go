package repository

import (
	"context"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var mangoIndexes = map[string][]string{
	"change-records-by-entity": {"doc_type", "entity_type", "entity_id"},
	"change-records-by-user":   {"doc_type", "user_id", "timestamp_ns"},
	"change-records-by-team":   {"doc_type", "team_id", "timestamp_ns"},
	"change-records-by-time":   {"doc_type", "timestamp_ns"},
	"shared-tasks-by-team":     {"doc_type", "team_id"},
	"members-by-user":          {"doc_type", "user_id"},
	"members-by-team":          {"doc_type", "team_id"},
	"users-by-email":           {"doc_type", "email"},
}

// Connect opens a kivik client against the CouchDB server at url.
func Connect(url string) (*kivik.Client, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to CouchDB")
	}
	return client, nil
}

// EnsureDatabase creates dbName when it does not exist yet.
func EnsureDatabase(ctx context.Context, client *kivik.Client, dbName string) error {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return errors.Wrap(err, "failed to check database existence")
	}

	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil {
			return errors.Wrap(err, "failed to create database")
		}
		log.Infof("created database: %s", dbName)
	}

	return nil
}

// EnsureIndexes creates the Mango indexes the repositories query through.
// Creating an index that already exists is a no-op in CouchDB.
func EnsureIndexes(ctx context.Context, client *kivik.Client, dbName string) error {
	db := client.DB(dbName)

	for name, fields := range mangoIndexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, "taskflow", name, index); err != nil {
			return errors.Wrapf(err, "failed to create index %s", name)
		}
		log.WithField("index", name).Debug("ensured mango index")
	}

	return nil
}
