package repository

import (
	"AgentDesk/entity"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type reportDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	AgentName string             `bson:"agent_name"`
	Title     string             `bson:"title"`
	Body      string             `bson:"body"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (m *MongoDB) ListReports(ctx context.Context, agentName string, limit int) ([]entity.Report, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection(m.reports).Find(ctx, bson.D{{Key: "agent_name", Value: agentName}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb decode reports: %w", err)
	}

	reports := make([]entity.Report, 0, len(docs))
	for _, d := range docs {
		reports = append(reports, entity.Report{
			ID:        d.ID.Hex(),
			AgentName: d.AgentName,
			Title:     d.Title,
			Body:      d.Body,
			CreatedAt: d.CreatedAt,
		})
	}
	return reports, nil
}

func (m *MongoDB) GetReport(ctx context.Context, id string) (*entity.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var d reportDoc
	if err = m.collection(m.reports).FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&d); err != nil {
		// findError maps a missing document to nil
		return nil, m.findError(err)
	}
	return &entity.Report{
		ID:        d.ID.Hex(),
		AgentName: d.AgentName,
		Title:     d.Title,
		Body:      d.Body,
		CreatedAt: d.CreatedAt,
	}, nil
}

func (m *MongoDB) SaveReport(ctx context.Context, report entity.Report) (string, error) {
	doc := reportDoc{
		AgentName: report.AgentName,
		Title:     report.Title,
		Body:      report.Body,
		CreatedAt: report.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	res, err := m.collection(m.reports).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("mongodb insert report: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return "", nil
}
