// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import "strconv"

// LabelPrefix starts every generated label name.
const LabelPrefix = "Label_"

// Label binds a symbolic name to an absolute offset in the decrypted script.
type Label struct {
	Name    string
	Address uint32
}

// LabelTable assigns names to branch targets in first-reference order.
// Labels are never removed. Address 0 is an ordinary address.
type LabelTable struct {
	byAddr map[uint32]int
	order  []Label
}

// NewLabelTable returns an empty table.
func NewLabelTable() *LabelTable {
	return &LabelTable{byAddr: make(map[uint32]int)}
}

// GetOrCreate returns the label for addr, creating "Label_<n>" with the next
// ordinal when addr has not been referenced before.
func (t *LabelTable) GetOrCreate(addr uint32) (Label, bool) {
	if i, ok := t.byAddr[addr]; ok {
		return t.order[i], false
	}
	l := Label{Name: LabelPrefix + strconv.Itoa(len(t.order)), Address: addr}
	t.byAddr[addr] = len(t.order)
	t.order = append(t.order, l)
	return l, true
}

// Lookup returns the label bound to addr, if any.
func (t *LabelTable) Lookup(addr uint32) (Label, bool) {
	i, ok := t.byAddr[addr]
	if !ok {
		return Label{}, false
	}
	return t.order[i], true
}

// Len returns the number of labels.
func (t *LabelTable) Len() int {
	return len(t.order)
}

// Labels returns all labels in creation order.
func (t *LabelTable) Labels() []Label {
	return append([]Label(nil), t.order...)
}
