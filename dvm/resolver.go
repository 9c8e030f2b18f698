package dvm

import (
	"context"
	"encoding/hex"

	"github.com/ALLiDoizCode/m2m-sub004/event"
	"github.com/ALLiDoizCode/m2m-sub004/eventdb"
)

// maxDependencyDepth bounds the dependency resolver's recursion.
const maxDependencyDepth = 10

// ResolveErrorCode classifies a dependency-resolution failure.
type ResolveErrorCode string

const (
	ErrMaxDepthExceeded         ResolveErrorCode = "MaxDepthExceeded"
	ErrCircularDependency       ResolveErrorCode = "CircularDependency"
	ErrMissingDependency        ResolveErrorCode = "MissingDependency"
	ErrInvalidDependencyTimestamp ResolveErrorCode = "InvalidDependencyTimestamp"
)

// ResolveError is returned by Resolve.
type ResolveError struct {
	Code    ResolveErrorCode
	Message string
}

func (e *ResolveError) Error() string { return string(e.Code) + ": " + e.Message }

func resolveErr(code ResolveErrorCode, msg string) *ResolveError {
	return &ResolveError{Code: code, Message: msg}
}

// ResolvedRecord is one dependency's resolved view: the result event's
// kind, content, declared status, and creation time.
type ResolvedRecord struct {
	Kind      int
	Content   string
	Status    string
	CreatedAt int64
}

func decodeHexID(s string) ([32]byte, error) {
	var id [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return id, resolveErr(ErrMissingDependency, "malformed dependency id: "+s)
	}
	copy(id[:], b)
	return id, nil
}

// Resolve walks req's dependency list against db, producing a mapping of
// dependency event id (hex) to its resolved record. It is pure over the
// database snapshot: two calls against the same data return the same
// result.
func Resolve(ctx context.Context, req *JobRequest, db *eventdb.DB, depth int, visited map[string]bool) (map[string]ResolvedRecord, error) {
	if depth > maxDependencyDepth {
		return nil, resolveErr(ErrMaxDepthExceeded, "dependency chain exceeds maximum depth")
	}
	if len(req.Dependencies) == 0 {
		return map[string]ResolvedRecord{}, nil
	}

	if visited == nil {
		visited = make(map[string]bool)
	}
	currentID := hex.EncodeToString(req.Event.ID[:])
	if visited[currentID] {
		return nil, resolveErr(ErrCircularDependency, "job request "+currentID+" depends on itself transitively")
	}
	visited[currentID] = true

	out := make(map[string]ResolvedRecord)
	for _, depIDHex := range req.Dependencies {
		depID, err := decodeHexID(depIDHex)
		if err != nil {
			return nil, err
		}

		depEvent, err := db.GetByID(ctx, depID)
		if err != nil {
			return nil, err
		}
		if depEvent == nil || depEvent.Kind < 6000 || depEvent.Kind > 6999 {
			return nil, resolveErr(ErrMissingDependency, "dependency "+depIDHex+" not found or not a result event")
		}
		if depEvent.CreatedAt >= req.Event.CreatedAt {
			return nil, resolveErr(ErrInvalidDependencyTimestamp, "dependency "+depIDHex+" is not strictly older than the requesting job")
		}

		status := "success"
		if tag, ok := depEvent.Tags.Find("status"); ok {
			if v := tag.Value(1); v != "" {
				status = v
			}
		}

		out[depIDHex] = ResolvedRecord{
			Kind:      depEvent.Kind,
			Content:   depEvent.Content,
			Status:    status,
			CreatedAt: depEvent.CreatedAt,
		}

		nested, err := resolveTransitiveDependencies(ctx, depEvent, db, depth, visited)
		if err != nil {
			return nil, err
		}
		for k, v := range nested {
			out[k] = v
		}
	}

	return out, nil
}

// resolveTransitiveDependencies looks for the job request that produced
// resultEvent (its first "e" tag) and, if that request itself declares
// dependencies, resolves them at depth+1 and returns the merged records.
func resolveTransitiveDependencies(ctx context.Context, resultEvent *event.Event, db *eventdb.DB, depth int, visited map[string]bool) (map[string]ResolvedRecord, error) {
	reqTag, ok := resultEvent.Tags.Find("e")
	if !ok {
		return nil, nil
	}
	requestID, err := decodeHexID(reqTag.Value(1))
	if err != nil {
		// A malformed backreference is not itself a resolution failure;
		// there's simply no originating request to chain through.
		return nil, nil
	}

	originating, err := db.GetByID(ctx, requestID)
	if err != nil || originating == nil {
		return nil, nil
	}

	originatingReq, err := parseCommonFields(originating)
	if err != nil || len(originatingReq.Dependencies) == 0 {
		return nil, nil
	}

	return Resolve(ctx, originatingReq, db, depth+1, visited)
}
