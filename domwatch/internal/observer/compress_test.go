package observer

import (
	"testing"

	"github.com/hazyhaar/dmitli/domwatch/mutation"
)

func TestCompress_ConsecutiveClockText(t *testing.T) {
	records := []mutation.Record{
		{Op: mutation.OpText, XPath: "/div[1]/time[1]/text()", Value: "0:59", OldValue: "1:00"},
		{Op: mutation.OpText, XPath: "/div[1]/time[1]/text()", Value: "0:58", OldValue: "0:59"},
		{Op: mutation.OpText, XPath: "/div[1]/time[1]/text()", Value: "0:57", OldValue: "0:58"},
	}

	got := compress(records)
	if len(got) != 1 {
		t.Fatalf("compress: got %d records, want 1", len(got))
	}
	if got[0].Value != "0:57" {
		t.Errorf("Value: got %q, want %q", got[0].Value, "0:57")
	}
	if got[0].OldValue != "1:00" {
		t.Errorf("OldValue: got %q, want %q", got[0].OldValue, "1:00")
	}
}

func TestCompress_ConsecutiveAttr(t *testing.T) {
	records := []mutation.Record{
		{Op: mutation.OpAttr, XPath: "/div", Name: "class", Value: "a", OldValue: "orig"},
		{Op: mutation.OpAttr, XPath: "/div", Name: "class", Value: "b", OldValue: "a"},
		{Op: mutation.OpAttr, XPath: "/div", Name: "style", Value: "x"},
	}

	got := compress(records)
	if len(got) != 2 {
		t.Fatalf("compress: got %d records, want 2 (different attribute names)", len(got))
	}
	if got[0].Value != "b" || got[0].OldValue != "orig" {
		t.Errorf("Record[0]: got %+v", got[0])
	}
}

func TestCompress_InsertsNeverCompressed(t *testing.T) {
	records := []mutation.Record{
		{Op: mutation.OpInsert, XPath: "/div/move[1]", Tag: "move", HTML: "<move>e4</move>"},
		{Op: mutation.OpInsert, XPath: "/div/move[1]", Tag: "move", HTML: "<move>e5</move>"},
		{Op: mutation.OpRemove, XPath: "/div/move[1]"},
	}

	got := compress(records)
	if len(got) != 3 {
		t.Fatalf("compress: got %d records, want 3", len(got))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("Record[%d]: got %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestCompress_Empty(t *testing.T) {
	if got := compress(nil); got != nil {
		t.Errorf("compress(nil): got %v, want nil", got)
	}
}

func TestDropNested(t *testing.T) {
	records := []mutation.Record{
		{Op: mutation.OpInsert, XPath: "/html[1]/body[1]/div[1]/div[3]", Tag: "div", HTML: "<div><move>e4</move></div>"},
		{Op: mutation.OpInsert, XPath: "/html[1]/body[1]/div[1]/div[3]/move[1]", Tag: "move", HTML: "<move>e4</move>"},
		{Op: mutation.OpInsert, XPath: "/html[1]/body[1]/div[1]/div[30]", Tag: "div", HTML: "<div></div>"},
		{Op: mutation.OpText, XPath: "/html[1]/body[1]/div[1]/div[3]/move[1]/text()", Value: "e4"},
	}

	got := dropNested(records)
	if len(got) != 3 {
		t.Fatalf("dropNested: got %d records, want 3: %+v", len(got), got)
	}
	if got[0].Tag != "div" || got[1].XPath != "/html[1]/body[1]/div[1]/div[30]" || got[2].Op != mutation.OpText {
		t.Errorf("dropNested: got %+v", got)
	}
}

func TestDecodeRecords_NestedInsertCountedOnce(t *testing.T) {
	payload := `[
		{"op":"insert","xpath":"/div[1]/div[2]","node_type":1,"tag":"div","html":"<div><move>Nf3</move></div>"},
		{"op":"insert","xpath":"/div[1]/div[2]/move[1]","node_type":1,"tag":"move","html":"<move>Nf3</move>"}
	]`
	got, err := decodeRecords(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Tag != "div" {
		t.Fatalf("decodeRecords: got %+v", got)
	}
}
