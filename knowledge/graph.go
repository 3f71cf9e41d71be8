// Package knowledge mirrors the course catalog into a Neo4j graph so the
// outline tool can surface courses related through a shared instructor.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/coursemat/course-agent/store"
)

// CourseGraph maintains Course, Lesson and Instructor nodes.
type CourseGraph struct {
	driver neo4j.DriverWithContext
}

func NewCourseGraph(driver neo4j.DriverWithContext) *CourseGraph {
	return &CourseGraph{driver: driver}
}

// SyncCourse upserts the course node, its lessons and its instructor link.
// Lesson nodes are rebuilt from scratch so removed lessons do not linger.
func (g *CourseGraph) SyncCourse(ctx context.Context, course store.Course) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{
			"title": course.Title,
			"link":  course.Link,
		}

		if _, err := tx.Run(ctx, `
			MERGE (c:Course {title: $title})
			SET c.link = $link,
			    c.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert course node: %w", err)
		}

		if course.Instructor != "" {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {title: $title})-[r:TAUGHT_BY]->(:Instructor)
				DELETE r
			`, params); err != nil {
				return nil, fmt.Errorf("remove stale instructor relation: %w", err)
			}
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {title: $title})
				MERGE (i:Instructor {name: $instructor})
				MERGE (c)-[:TAUGHT_BY]->(i)
			`, map[string]any{"title": course.Title, "instructor": course.Instructor}); err != nil {
				return nil, fmt.Errorf("upsert instructor relation: %w", err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Course {title: $title})-[:HAS_LESSON]->(l:Lesson)
			DETACH DELETE l
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing lesson nodes: %w", err)
		}

		for _, lesson := range course.Lessons {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {title: $title})
				CREATE (l:Lesson {number: $number, title: $lesson_title, link: $lesson_link})
				MERGE (c)-[:HAS_LESSON {order: $number}]->(l)
			`, map[string]any{
				"title":        course.Title,
				"number":       lesson.Number,
				"lesson_title": lesson.Title,
				"lesson_link":  lesson.Link,
			}); err != nil {
				return nil, fmt.Errorf("create lesson node %d: %w", lesson.Number, err)
			}
		}

		return nil, nil
	})

	return err
}

// RelatedCourses lists other courses sharing the given course's instructor.
func (g *CourseGraph) RelatedCourses(ctx context.Context, title string) ([]string, error) {
	if g.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (c:Course {title: $title})-[:TAUGHT_BY]->(i:Instructor)<-[:TAUGHT_BY]-(other:Course)
		WHERE other.title <> $title
		RETURN other.title AS title
		ORDER BY title
	`, map[string]any{"title": title})
	if err != nil {
		return nil, fmt.Errorf("run related courses query: %w", err)
	}

	var titles []string
	for result.Next(ctx) {
		if value, ok := result.Record().Get("title"); ok {
			if t, ok := value.(string); ok && t != "" {
				titles = append(titles, t)
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("related courses result error: %w", err)
	}

	return titles, nil
}

// Purge removes every course, lesson and instructor node.
func (g *CourseGraph) Purge(ctx context.Context) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (l:Lesson) DETACH DELETE l",
		"MATCH (c:Course) DETACH DELETE c",
		"MATCH (i:Instructor) DETACH DELETE i",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}

	return nil
}
