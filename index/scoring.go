package index

import "math"

// BM25F parameters, the whoosh defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// idf is the inverse document frequency of a term found in docFreq of
// docCount documents.
func idf(docCount, docFreq int) float64 {
	return math.Log(float64(docCount)/float64(docFreq+1)) + 1
}

// bm25 scores one term in one field of one document.
func bm25(idf float64, tf, fieldLen uint32, avgFieldLen float64) float64 {
	if avgFieldLen <= 0 {
		return 0
	}
	t := float64(tf)
	norm := (1 - bm25B) + bm25B*float64(fieldLen)/avgFieldLen
	return idf * (t * (bm25K1 + 1)) / (t + bm25K1*norm)
}
