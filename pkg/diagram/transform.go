package diagram

// defaultTransformFor returns the node-type-specific default transform that
// applies to an edge before any arrow-declared or connection-level override
// is layered on top (spec.md §4.2's merge order, stage 1 of 3).
//
// condition nodes default their output edges to carrying the branch's
// boolean result as raw content; edges leaving a person_job (or
// person_batch_job) default to "conversation_state" content when the edge doesn't declare otherwise, since
// the overwhelmingly common wiring is "feed the running conversation back
// in".
func defaultTransformFor(sourceType NodeType) TransformRule {
	switch sourceType {
	case NodeTypeCondition:
		return TransformRule{BranchOnConditionRes: true}
	case NodeTypePersonJob, NodeTypePersonBatchJob:
		return TransformRule{ContentType: "conversation_state"}
	default:
		return TransformRule{}
	}
}

// ResolveTransform computes an edge's effective transform by merging, in
// order: the source node type's default, the arrow's own declared
// transform, and finally any connection-level override recorded directly on
// the arrow's metadata (callers that don't distinguish "declared" from
// "override" pass the same TransformRule for both and the merge is a no-op
// on the second layer).
func ResolveTransform(sourceType NodeType, declared, override TransformRule) TransformRule {
	merged := defaultTransformFor(sourceType).Merge(declared)
	return merged.Merge(override)
}
