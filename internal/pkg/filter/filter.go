package filter

import (
	"sort"
	"strings"

	"github.com/docuflow/docuflow/internal/pkg/contract"
	"github.com/docuflow/docuflow/internal/pkg/flatten"
)

// Apply prunes every repeated element group the contract declares a rule
// for, installing the valid, deduplicated subset back into the context.
// Deterministic for a given (document, contract); no other state is read.
//
// Per rule: instances missing the discriminating or classifying attribute
// are dropped, as are instances whose classifying value is not declared.
// Survivors group by identity key (the discriminating attribute's value)
// and the instance with the highest-priority classifying value wins, ties
// broken by document order. Children cascade the parent's identity key and
// die with their parent.
func Apply(ctx *flatten.Context, rules map[string]contract.FilterRule) {
	dropped := make(map[*flatten.Element]bool)

	for elementType, rule := range rules {
		group := ctx.Group(elementType)
		if len(group) == 0 {
			continue
		}
		survivors := FilterGroup(group, rule)

		kept := make(map[*flatten.Element]bool, len(survivors))
		for _, el := range survivors {
			kept[el] = true
		}
		for _, el := range group {
			if !kept[el] {
				markDropped(el, dropped)
			}
		}
		ctx.ReplaceGroup(elementType, survivors)
	}

	if len(dropped) == 0 {
		return
	}
	// Children of eliminated parents are registered under their own group
	// names too; prune them everywhere.
	for _, name := range ctx.GroupNames() {
		group := ctx.Group(name)
		pruned := group[:0]
		for _, el := range group {
			if !dropped[el] {
				pruned = append(pruned, el)
			}
		}
		ctx.ReplaceGroup(name, pruned)
	}
}

// FilterGroup selects the surviving instances of one repeated element group
// under a rule. Pure; input order is document order.
func FilterGroup(group []*flatten.Element, rule contract.FilterRule) []*flatten.Element {
	priority := make(map[string]int, len(rule.PriorityValues))
	for i, v := range rule.PriorityValues {
		priority[strings.ToLower(v)] = i
	}

	type candidate struct {
		el       *flatten.Element
		priority int
	}
	best := make(map[string]candidate)
	var keys []string

	for _, el := range group {
		identity, ok := el.Attr(rule.RequiredAttribute)
		if !ok || strings.TrimSpace(identity) == "" {
			continue
		}
		classifier, ok := el.Attr(rule.ClassifierAttribute)
		if !ok {
			continue
		}
		prio, ok := priority[strings.ToLower(strings.TrimSpace(classifier))]
		if !ok {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(identity))
		cur, seen := best[key]
		if !seen {
			best[key] = candidate{el: el, priority: prio}
			keys = append(keys, key)
			continue
		}
		// Strictly higher priority replaces; equal priority keeps the
		// earlier instance (document order).
		if prio < cur.priority {
			best[key] = candidate{el: el, priority: prio}
		}
	}

	survivors := make([]*flatten.Element, 0, len(keys))
	for _, key := range keys {
		survivors = append(survivors, best[key].el)
	}
	// Keys were appended at first sight, so survivors already follow
	// document order of their groups; sort by element index for safety.
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Index < survivors[j].Index
	})
	for _, el := range survivors {
		identity, _ := el.Attr(rule.RequiredAttribute)
		cascadeIdentity(el, strings.TrimSpace(identity))
	}
	return survivors
}

// cascadeIdentity stamps the parent's identity key onto the element and all
// of its descendants.
func cascadeIdentity(el *flatten.Element, key string) {
	el.IdentityKey = key
	for _, child := range el.Children {
		cascadeIdentity(child, key)
	}
}

// markDropped marks an element and its whole subtree as eliminated.
func markDropped(el *flatten.Element, dropped map[*flatten.Element]bool) {
	dropped[el] = true
	for _, child := range el.Children {
		markDropped(child, dropped)
	}
}
