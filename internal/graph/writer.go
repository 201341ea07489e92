package graph

import (
	"context"
	"encoding/json"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"karriere-harvester/internal/logger"
	"karriere-harvester/internal/models"
)

// Writer applies results and edges to Neo4j, one write transaction each.
type Writer struct {
	driver DriverSessioner
	log    logger.Logger
}

// NewWriter builds a writer over driver.
func NewWriter(driver DriverSessioner, log logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Writer{driver: driver, log: log}
}

// WriteResult decodes a results-topic payload and merges its Job node.
// Records without an ID are ignored.
func (w *Writer) WriteResult(ctx context.Context, payload []byte) error {
	var result models.RecordResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return err
	}
	if result.Record.ID == "" {
		return nil
	}
	query, params := BuildJobQuery(result.RunID, result.Record)
	return w.runWrite(ctx, query, params)
}

// WriteEdge decodes an edges-topic payload and merges the relationship.
func (w *Writer) WriteEdge(ctx context.Context, payload []byte) error {
	var edge models.Edge
	if err := json.Unmarshal(payload, &edge); err != nil {
		return err
	}
	if edge.From == "" || edge.To == "" {
		return nil
	}
	query, params := BuildEdgeQuery(edge)
	return w.runWrite(ctx, query, params)
}

func (w *Writer) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			w.log.Warn("neo4j session close error", logger.Error(err))
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}
