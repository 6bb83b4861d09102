// Package graph records patents and their families in Neo4j as
// (:Patent {number})-[:MEMBER_OF]->(:Family {id}).
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/WessleyAI/patent-search/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrNoPatentNumber is returned for records without a patent number.
var ErrNoPatentNumber = errors.New("graph: patent number is required")

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Consume(ctx context.Context) (neo4j.ResultSummary, error)
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// FamilyGraph writes patent family membership.
type FamilyGraph struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// New creates a FamilyGraph over driver.
func New(driver neo4j.DriverWithContext) *FamilyGraph {
	return &FamilyGraph{driver: driver}
}

// Connect opens a driver with basic auth and verifies connectivity.
func Connect(ctx context.Context, url, user, pass string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: driver %s: %w", url, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: connect %s: %w", url, err)
	}
	return driver, nil
}

func (g *FamilyGraph) session(ctx context.Context) runner {
	if g.newSession != nil {
		return g.newSession(ctx)
	}
	return &sessionAdapter{sess: g.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

func (g *FamilyGraph) exec(ctx context.Context, cypher string, params map[string]any) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// EnsureConstraints creates the uniqueness constraints used by MERGE.
func (g *FamilyGraph) EnsureConstraints(ctx context.Context) error {
	for _, c := range []string{
		`CREATE CONSTRAINT patent_number IF NOT EXISTS FOR (p:Patent) REQUIRE p.number IS UNIQUE`,
		`CREATE CONSTRAINT family_id IF NOT EXISTS FOR (f:Family) REQUIRE f.id IS UNIQUE`,
	} {
		if err := g.exec(ctx, c, nil); err != nil {
			return fmt.Errorf("graph: constraint: %w", err)
		}
	}
	return nil
}

const mergePatent = `MERGE (p:Patent {number: $number})
SET p.title = $title, p.publication_id = $publication_id, p.publication_date = $publication_date`

const mergeFamily = mergePatent + `
MERGE (f:Family {id: $family})
MERGE (p)-[:MEMBER_OF]->(f)`

// RecordPatent upserts the patent node and, when the record has a family id,
// its family membership.
func (g *FamilyGraph) RecordPatent(ctx context.Context, f domain.Fields) error {
	if f.PatentNumber == "" {
		return ErrNoPatentNumber
	}
	params := map[string]any{
		"number":           f.PatentNumber,
		"title":            f.Title,
		"publication_id":   f.PublicationID,
		"publication_date": f.PublicationDate,
	}
	cypher := mergePatent
	if f.FamilyID != "" {
		params["family"] = f.FamilyID
		cypher = mergeFamily
	}
	if err := g.exec(ctx, cypher, params); err != nil {
		return fmt.Errorf("graph: record %s: %w", f.PatentNumber, err)
	}
	return nil
}

// FamilyMembers returns the other patents in patentNumber's family.
func (g *FamilyGraph) FamilyMembers(ctx context.Context, patentNumber string) ([]string, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (:Patent {number: $number})-[:MEMBER_OF]->(:Family)<-[:MEMBER_OF]-(o:Patent)
		 RETURN o.number AS number ORDER BY number`,
		map[string]any{"number": patentNumber})
	if err != nil {
		return nil, fmt.Errorf("graph: family of %s: %w", patentNumber, err)
	}

	var out []string
	for res.Next(ctx) {
		if v, ok := res.Record().Get("number"); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	if _, err := res.Consume(ctx); err != nil {
		return nil, fmt.Errorf("graph: family of %s: %w", patentNumber, err)
	}
	return out, nil
}
