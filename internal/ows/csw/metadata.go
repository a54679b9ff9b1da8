package csw

import (
	"regexp"
	"sort"
	"strings"
)

// MetadataGroup is a synthetic catalog-tree node built from
// hierarchy-separated domain values ("Multiple Use | Fisheries"). The
// match rule for every segment but the deepest is a prefix regex; the
// deepest segment matches the full joined value literally.
type MetadataGroup struct {
	Field string // queryable property the rule matches against
	Value string // literal value or regex source
	Regex bool
	Group string // display name, the segment itself

	Children []*MetadataGroup
	Records  []*Record

	pattern *regexp.Regexp
}

// BuildMetadataGroups builds the grouping tree from a GetDomain value
// list. Values are sorted first so the tree shape is deterministic.
func BuildMetadataGroups(values []string, separator, queryField string) []*MetadataGroup {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)

	var roots []*MetadataGroup
	for _, value := range sorted {
		if value == "" {
			continue
		}
		addMetadataGroup(strings.Split(value, separator), 0, &roots, separator, queryField)
	}
	return roots
}

func addMetadataGroup(keys []string, index int, groups *[]*MetadataGroup, separator, field string) {
	if index > len(keys)-1 {
		return
	}

	var group *MetadataGroup
	for _, existing := range *groups {
		if existing.Group == keys[index] {
			group = existing
			break
		}
	}
	deepest := index+1 == len(keys)
	if group == nil {
		group = &MetadataGroup{Field: field, Group: keys[index]}
		if deepest {
			group.Value = strings.Join(keys, separator)
		}
		*groups = append(*groups, group)
	}
	// A segment that is the deepest of one domain value can be an inner
	// segment of a longer one ("A" next to "A | B"). The prefix regex
	// matches the exact value too, so the wider rule wins.
	if !deepest && !group.Regex {
		group.Regex = true
		group.Value = "^" + regexp.QuoteMeta(strings.Join(keys[:index+1], separator))
		group.pattern = regexp.MustCompile(group.Value)
	}
	addMetadataGroup(keys, index+1, &group.Children, separator, field)
}

// Matches reports whether any of the record's values for the group's
// field satisfies the match rule.
func (g *MetadataGroup) Matches(rec *Record) bool {
	for _, v := range rec.Values(g.Field) {
		if g.Regex {
			if g.pattern.MatchString(v) {
				return true
			}
		} else if v == g.Value {
			return true
		}
	}
	return false
}

// AssignRecords places each record into its best-matching group: depth
// first, children before the group itself, first match wins. A record
// no group matches stays out of the tree (it remains in the flat
// harvest list).
func AssignRecords(groups []*MetadataGroup, records []*Record) {
	for _, rec := range records {
		if g := findGroup(groups, rec); g != nil {
			g.Records = append(g.Records, rec)
		}
	}
}

func findGroup(groups []*MetadataGroup, rec *Record) *MetadataGroup {
	for _, g := range groups {
		if !g.Matches(rec) {
			continue
		}
		if child := findGroup(g.Children, rec); child != nil {
			return child
		}
		return g
	}
	return nil
}
