package search

import "github.com/poiesic/docrag/core"

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(question string, k int)
	AfterEmbedding(dimensions int)
	AfterSearch(results []*core.SearchResult)
	Finish(context string)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)              {}
func (n *noopMonitor) AfterEmbedding(_ int)               {}
func (n *noopMonitor) AfterSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) Finish(_ string)                    {}
