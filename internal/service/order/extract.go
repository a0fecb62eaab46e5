package order

import (
	"reflect"
	"regexp"
	"sort"
	"strings"
)

const (
	maxDepth = 12
	maxNodes = 2000
)

var orderIDPattern = regexp.MustCompile(`^(order|ord)_`)

type matcher func(node map[string]interface{}) (map[string]interface{}, bool)

// ExtractOrder finds the order inside a completion payload. The payload
// shape varies between backend versions, so four heuristics are tried in
// priority order, each as a full depth-first search:
//
//  1. an "order" object
//  2. an object tagged type "order" wrapping "data" or "order"
//  3. an object that looks like an order (id prefix, object tag, or
//     payment_status + fulfillment_status + display_id)
//  4. an "order_id" reference, returned as {"id": ...}
func ExtractOrder(payload map[string]interface{}) (map[string]interface{}, bool) {
	if payload == nil {
		return nil, false
	}
	for _, m := range []matcher{orderField, taggedOrder, looksLikeOrder, orderReference} {
		if found, ok := search(payload, m); ok {
			return found, true
		}
	}
	return nil, false
}

func orderField(node map[string]interface{}) (map[string]interface{}, bool) {
	o, ok := node["order"].(map[string]interface{})
	return o, ok
}

func taggedOrder(node map[string]interface{}) (map[string]interface{}, bool) {
	if t, _ := node["type"].(string); !strings.EqualFold(t, "order") {
		return nil, false
	}
	for _, k := range []string{"data", "order"} {
		if o, ok := node[k].(map[string]interface{}); ok {
			return o, true
		}
	}
	return nil, false
}

func looksLikeOrder(node map[string]interface{}) (map[string]interface{}, bool) {
	if id, _ := node["id"].(string); orderIDPattern.MatchString(id) {
		return node, true
	}
	if obj, _ := node["object"].(string); obj == "order" {
		return node, true
	}
	_, ps := node["payment_status"]
	_, fs := node["fulfillment_status"]
	_, di := node["display_id"]
	if ps && fs && di {
		return node, true
	}
	return nil, false
}

func orderReference(node map[string]interface{}) (map[string]interface{}, bool) {
	if id, ok := node["order_id"].(string); ok && strings.TrimSpace(id) != "" {
		return map[string]interface{}{"id": id}, true
	}
	return nil, false
}

// search walks the payload depth-first with sorted keys, guarding against
// cycles and bounding depth and visited nodes.
func search(root map[string]interface{}, match matcher) (map[string]interface{}, bool) {
	visited := map[uintptr]bool{}
	nodes := 0

	var walk func(v interface{}, depth int) (map[string]interface{}, bool)
	walk = func(v interface{}, depth int) (map[string]interface{}, bool) {
		if depth > maxDepth || nodes >= maxNodes {
			return nil, false
		}
		switch x := v.(type) {
		case map[string]interface{}:
			ptr := reflect.ValueOf(x).Pointer()
			if visited[ptr] {
				return nil, false
			}
			visited[ptr] = true
			nodes++
			if found, ok := match(x); ok {
				return found, true
			}
			for _, k := range sortedKeys(x) {
				if found, ok := walk(x[k], depth+1); ok {
					return found, true
				}
			}
		case []interface{}:
			nodes++
			for _, item := range x {
				if found, ok := walk(item, depth+1); ok {
					return found, true
				}
			}
		}
		return nil, false
	}
	return walk(root, 0)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
