// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package codegen

// Context carries the two stacks spec.md §4.4 threads through every
// produce/consume call: the i/o variable stack (the name of the
// "current tuple" variable at this point in the generated procedure)
// and the variable-request stack (what a parent asked a child to name
// the value(s) it hands back, e.g. a join probe key). Translators
// read/write these instead of passing extra function parameters, the
// same shape the teacher's own multi-pass compilers use for ambient
// per-call state.
type Context struct {
	Emit *Emitter

	ioStack      []string
	requestStack []map[string]string
}

// NewContext returns a Context wrapping a fresh Emitter.
func NewContext() *Context {
	return &Context{Emit: NewEmitter()}
}

// PushIO makes varName the current i/o (tuple) variable for nested
// produce/consume calls.
func (c *Context) PushIO(varName string) { c.ioStack = append(c.ioStack, varName) }

// PopIO restores the previous i/o variable.
func (c *Context) PopIO() {
	c.ioStack = c.ioStack[:len(c.ioStack)-1]
}

// IO returns the current i/o variable name.
func (c *Context) IO() string {
	if len(c.ioStack) == 0 {
		return ""
	}
	return c.ioStack[len(c.ioStack)-1]
}

// PushRequest opens a fresh variable-request frame.
func (c *Context) PushRequest() { c.requestStack = append(c.requestStack, map[string]string{}) }

// PopRequest closes the current variable-request frame and returns it.
func (c *Context) PopRequest() map[string]string {
	top := c.requestStack[len(c.requestStack)-1]
	c.requestStack = c.requestStack[:len(c.requestStack)-1]
	return top
}

// Request records that key resolves to varName in the current frame.
func (c *Context) Request(key, varName string) {
	c.requestStack[len(c.requestStack)-1][key] = varName
}

// Requested looks up key in the current frame.
func (c *Context) Requested(key string) (string, bool) {
	if len(c.requestStack) == 0 {
		return "", false
	}
	v, ok := c.requestStack[len(c.requestStack)-1][key]
	return v, ok
}
