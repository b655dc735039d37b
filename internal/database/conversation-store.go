package repository

import (
	"AgentDesk/entity"
	"AgentDesk/internal/conversation"
	"AgentDesk/internal/lib/sl"
	"context"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxDocuments caps one bulk load so a wide date range cannot exhaust memory.
const maxDocuments = 10000

// zoneSlack is the widest offset a legacy datetime string may carry.
const zoneSlack = 14 * time.Hour

// timeFields are the row fields a message time may be stored under.
var timeFields = []string{"datetime", "timestamp", "created_at"}

// FindDocuments returns the raw rows of one agent that may fall inside
// [from, to]. A zero bound is open. The window is coarse: callers re-check
// the parsed datetime.
func (m *MongoDB) FindDocuments(ctx context.Context, agentName string, from, to time.Time) ([]map[string]interface{}, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "datetime", Value: 1}}).
		SetLimit(maxDocuments)

	return m.find(ctx, windowFilter(agentName, from, to), opts)
}

// FindDocumentsSince returns rows that may be newer than the checkpoint.
func (m *MongoDB) FindDocumentsSince(ctx context.Context, agentName string, since time.Time) ([]map[string]interface{}, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "datetime", Value: 1}}).
		SetLimit(maxDocuments)

	return m.find(ctx, windowFilter(agentName, since, time.Time{}), opts)
}

// windowFilter matches a row when any of its time fields, stored as a BSON
// date, a unix number or a string in one of the accepted layouts, can be
// within the window. Mongo compares within one BSON type only, so each type
// gets its own clause.
func windowFilter(agentName string, from, to time.Time) bson.D {
	filter := bson.D{{Key: "agent_name", Value: agentName}}
	if from.IsZero() && to.IsZero() {
		return filter
	}

	var dates, numbers, unixStrings bson.D
	lo, hi := stringRange(from, to)
	strs := bson.D{}
	if lo != "" {
		strs = append(strs, bson.E{Key: "$gte", Value: lo})
	}
	if hi != "" {
		strs = append(strs, bson.E{Key: "$lt", Value: hi})
	}
	if !from.IsZero() {
		dates = append(dates, bson.E{Key: "$gte", Value: from.UTC()})
		numbers = append(numbers, bson.E{Key: "$gte", Value: from.Unix()})
		unixStrings = append(unixStrings,
			bson.E{Key: "$gte", Value: strconv.FormatInt(from.Unix(), 10)},
			bson.E{Key: "$lt", Value: "2"},
		)
	}
	if !to.IsZero() {
		dates = append(dates, bson.E{Key: "$lte", Value: to.UTC()})
		numbers = append(numbers, bson.E{Key: "$lte", Value: to.Unix() + 1})
		unixStrings = append(unixStrings, bson.E{Key: "$lte", Value: strconv.FormatInt(to.Unix()+1, 10)})
	}

	or := bson.A{}
	for _, field := range timeFields {
		or = append(or,
			bson.D{{Key: field, Value: strs}},
			bson.D{{Key: field, Value: dates}},
			bson.D{{Key: field, Value: numbers}},
			bson.D{{Key: field, Value: unixStrings}},
		)
	}
	return append(filter, bson.E{Key: "$or", Value: or})
}

// stringRange bounds datetime strings by calendar day, widened by the zone
// slack, so every layout starting with a date compares correctly. An empty
// bound is open.
func stringRange(from, to time.Time) (string, string) {
	var lo, hi string
	if !from.IsZero() {
		lo = from.UTC().Add(-zoneSlack).Format(time.DateOnly)
	}
	if !to.IsZero() {
		hi = to.UTC().Add(zoneSlack).AddDate(0, 0, 1).Format(time.DateOnly)
	}
	return lo, hi
}

func (m *MongoDB) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]map[string]interface{}, error) {
	cursor, err := m.collection(m.conversations).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []map[string]interface{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			m.log.Warn("skipping undecodable document", sl.Err(err))
			continue
		}
		docs = append(docs, map[string]interface{}(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb iterate documents: %w", err)
	}
	return docs, nil
}

// InsertDocument appends one message row. Rows are never edited afterwards.
func (m *MongoDB) InsertDocument(ctx context.Context, doc entity.StoredDocument) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Datetime == "" {
		doc.Datetime = conversation.FormatTime(doc.CreatedAt)
	}
	if _, err := m.collection(m.conversations).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb insert document: %w", err)
	}
	return nil
}
