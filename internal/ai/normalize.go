package ai

// DeepFixTextObjects walks a decoded JSON tree and collapses any object
// of the exact shape {"text": value} down to value, recursively. This is
// a defensive fixup for a serialization quirk upstream: the model
// sometimes wraps string leaves in a single-key "text" object. Already
// normalized input passes through unchanged, so the fixup is idempotent.
func DeepFixTextObjects(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		// The wrapper shape: exactly one key, and it is "text".
		if len(node) == 1 {
			if inner, ok := node["text"]; ok {
				return DeepFixTextObjects(inner)
			}
		}
		for k, child := range node {
			node[k] = DeepFixTextObjects(child)
		}
		return node
	case []interface{}:
		for i, child := range node {
			node[i] = DeepFixTextObjects(child)
		}
		return node
	default:
		return v
	}
}
