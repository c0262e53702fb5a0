// Package convert maps replica wire messages to domain documents and back.
package convert

import (
	"fmt"

	"github.com/and161185/clipsync/internal/model"
	pb "github.com/and161185/clipsync/internal/rpc/replicav1"
)

// ParseKind validates a wire kind.
func ParseKind(s string) (model.Kind, error) {
	k := model.Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

// --- Documents ---

// ToWireDocument converts a domain document to its wire form.
func ToWireDocument(d model.Document) pb.Document {
	return pb.Document{ID: d.ID, Body: d.Body, UpdatedAt: d.UpdatedAt}
}

// ToWireDocuments converts a slice of domain documents.
func ToWireDocuments(in []model.Document) []pb.Document {
	out := make([]pb.Document, 0, len(in))
	for _, d := range in {
		out = append(out, ToWireDocument(d))
	}
	return out
}

// FromWireDocuments converts wire documents of one kind, rejecting empty ids.
func FromWireDocuments(kind model.Kind, in []pb.Document) ([]model.Document, error) {
	out := make([]model.Document, 0, len(in))
	for i, d := range in {
		if d.ID == "" {
			return nil, fmt.Errorf("document[%d]: empty id", i)
		}
		out = append(out, model.Document{Kind: kind, ID: d.ID, Body: d.Body, UpdatedAt: d.UpdatedAt})
	}
	return out, nil
}

// --- Pages ---

// ToWirePage converts a listing page to a FetchPage response.
func ToWirePage(p model.Page) *pb.FetchPageResponse {
	return &pb.FetchPageResponse{Documents: ToWireDocuments(p.Documents), NextCursor: p.NextCursor}
}

// FromWirePage converts a FetchPage response.
func FromWirePage(kind model.Kind, r *pb.FetchPageResponse) (model.Page, error) {
	if r == nil {
		return model.Page{}, nil
	}
	docs, err := FromWireDocuments(kind, r.Documents)
	if err != nil {
		return model.Page{}, err
	}
	return model.Page{Documents: docs, NextCursor: r.NextCursor}, nil
}

// --- Stats ---

// ToWireStats converts replica stats to a Stats response.
func ToWireStats(st model.ReplicaStats) *pb.StatsResponse {
	counts := make(map[string]int64, len(st.Counts))
	for k, n := range st.Counts {
		counts[string(k)] = n
	}
	return &pb.StatsResponse{Counts: counts, MaxBatch: int32(st.MaxBatch)}
}

// FromWireStats converts a Stats response, dropping kinds this client does not know.
func FromWireStats(r *pb.StatsResponse) model.ReplicaStats {
	st := model.ReplicaStats{Counts: make(map[model.Kind]int64), MaxBatch: int(r.GetMaxBatch())}
	for k, n := range r.GetCounts() {
		if kind, err := ParseKind(k); err == nil {
			st.Counts[kind] = n
		}
	}
	return st
}
