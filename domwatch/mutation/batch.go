// Package mutation defines the records the DOM watcher delivers. Emitters
// import it to inspect what changed under the subtree they observe.
package mutation

// Op is the type of DOM mutation observed.
type Op string

const (
	OpInsert Op = "insert" // node added (element HTML or text value attached)
	OpRemove Op = "remove" // node removed
	OpText   Op = "text"   // characterData changed
	OpAttr   Op = "attr"   // attribute changed
)

// Record is a single DOM mutation.
type Record struct {
	Op       Op     `json:"op"`
	XPath    string `json:"xpath"`
	NodeType int    `json:"node_type,omitempty"` // 1=element, 3=text, 8=comment
	Tag      string `json:"tag,omitempty"`       // lower-case node name
	Name     string `json:"name,omitempty"`      // attribute name for attr
	Value    string `json:"value,omitempty"`     // new value; text content for text nodes
	OldValue string `json:"old_value,omitempty"` // previous value
	HTML     string `json:"html,omitempty"`      // outerHTML for inserted/removed elements
}

// IsElement reports whether the record concerns an element node.
func (r Record) IsElement() bool { return r.NodeType == 1 }

// Batch is one MutationObserver callback's worth of records, in the order
// the browser reported them.
type Batch struct {
	ID        string   `json:"id"`
	Selector  string   `json:"selector"` // root the watcher observes
	Seq       uint64   `json:"seq"`      // monotonically increasing per watcher
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds at delivery
}

// Inserted returns the insert records of the batch, in order.
func (b Batch) Inserted() []Record {
	var out []Record
	for _, r := range b.Records {
		if r.Op == OpInsert {
			out = append(out, r)
		}
	}
	return out
}
