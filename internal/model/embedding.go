package model

import (
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// EmbeddingDimensions is the stored vector width. Query and document
// embeddings are both truncated to it.
const EmbeddingDimensions = 2000

// Embedding stores a vector as pgvector on postgres and as its text form
// ("[0.1,0.2]") on other dialects.
type Embedding struct {
	pgvector.Vector
}

func NewEmbedding(values []float32) *Embedding {
	return &Embedding{Vector: pgvector.NewVector(values)}
}

func (Embedding) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return fmt.Sprintf("vector(%d)", EmbeddingDimensions)
	case "mysql":
		return "longtext"
	default:
		return "text"
	}
}
