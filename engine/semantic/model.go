package semantic

// DocumentKey is the payload key holding the passage text. Every other payload
// key is returned as metadata.
const DocumentKey = "document"

// QueryResult holds the aligned lists of one nearest-neighbour query, ordered by
// ascending distance. Documents[i], Metadatas[i] and Distances[i] describe the
// same point.
type QueryResult struct {
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}

// Len returns the number of hits.
func (r QueryResult) Len() int { return len(r.Documents) }
