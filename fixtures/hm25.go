package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xraph/testbank/contract"
)

// HM25Name is the deployment name of the HM25 fixture.
const HM25Name = "HM25"

// ErrAlreadyInitialized is returned by a second Initialize.
var ErrAlreadyInitialized = errors.New("fixtures: already initialized")

// Loop and recursion parameters.
const (
	proc01Factor = 200
	proc02Factor = 1_000_000
	func02Stride = 10_000
)

// HM25 is the fault fixture. Its state is six byte-sized variables so that
// ordinary arithmetic wraps early.
type HM25 struct {
	vars        [6]uint8
	initialized bool
}

var (
	_ contract.Contract = (*HM25)(nil)
	_ contract.Stateful = (*HM25)(nil)
)

// NewHM25 creates an uninitialized fixture.
func NewHM25() *HM25 { return &HM25{} }

// Name implements contract.Contract.
func (c *HM25) Name() string { return HM25Name }

// Empty is the input or output of entry points without fields.
type Empty struct{}

// Proc01Output reports the multiplied variable.
type Proc01Output struct {
	Output1 uint8 `json:"output1"`
}

// Proc02Output reports the variable the loop ended on.
type Proc02Output struct {
	Output21 uint8 `json:"output21"`
	Output22 bool  `json:"output22"`
}

// Func01Input is the wide input narrowed by Func01.
type Func01Input struct {
	Input1 int64 `json:"input1"`
}

// Func01Output carries the narrowed value.
type Func01Output struct {
	Output1 uint8 `json:"output1"`
}

// Func02Input is the loop bound of Func02.
type Func02Input struct {
	Input2 uint64 `json:"input2"`
}

// Func02Output carries the loop counter.
type Func02Output struct {
	Output2 uint8 `json:"output2"`
}

// Func03Input is the divisor of Func03.
type Func03Input struct {
	Input3 int64 `json:"input3"`
}

// Func03Output carries the quotient.
type Func03Output struct {
	Output3 uint64 `json:"output3"`
}

// Func04Output counts recursion into Func04.
type Func04Output struct {
	Output4 uint64 `json:"output4"`
}

// Func05Output counts recursion into Func05.
type Func05Output struct {
	Var5 uint64 `json:"var5"`
}

// Register implements contract.Contract.
func (c *HM25) Register(r *contract.Registry) {
	contract.Procedure(r, 1, "proc01", c.Proc01)
	contract.Procedure(r, 2, "proc02", c.Proc02)
	contract.Procedure(r, 3, "proc03", c.Proc03)
	contract.Procedure(r, 4, "proc04", c.Proc04)
	contract.Procedure(r, 5, "proc05", c.Proc05)

	contract.Function(r, 1, "func01", c.Func01)
	contract.Function(r, 2, "func02", c.Func02)
	contract.Function(r, 3, "func03", c.Func03)
	contract.Function(r, 4, "func04", c.Func04)
	contract.Function(r, 5, "func05", c.Func05)
}

// Initialize sets var0..var5 to 0..5.
func (c *HM25) Initialize(_ *contract.Invocation) error {
	if c.initialized {
		return ErrAlreadyInitialized
	}
	for i := range c.vars {
		c.vars[i] = uint8(i) //nolint:gosec // i < 6
	}
	c.initialized = true
	return nil
}

// Vars returns a copy of var0..var5.
func (c *HM25) Vars() [6]uint8 { return c.vars }

// Proc01 multiplies var1 in place. The second call already wraps.
func (c *HM25) Proc01(inv *contract.Invocation, _ Empty) (Proc01Output, contract.Outcome) {
	inv.Step()
	wide := uint64(c.vars[1]) * proc01Factor
	c.vars[1] = uint8(wide) //nolint:gosec // truncation is the point
	return Proc01Output{Output1: c.vars[1]}, contract.Applied().Wrap(wide > 0xff)
}

// Proc02 multiplies var2 until it reaches zero. It only terminates because
// the byte wraps to zero.
func (c *HM25) Proc02(inv *contract.Invocation, _ Empty) (Proc02Output, contract.Outcome) {
	wrapped := false
	for c.vars[2] > 0 {
		inv.Step()
		wide := uint64(c.vars[2]) * proc02Factor
		wrapped = wrapped || wide > 0xff
		c.vars[2] = uint8(wide) //nolint:gosec // truncation is the point
	}
	return Proc02Output{Output21: c.vars[2], Output22: true}, contract.Applied().Wrap(wrapped)
}

// Proc03 stores var1 / var0. var0 is zero after initialization.
func (c *HM25) Proc03(inv *contract.Invocation, _ Empty) (Empty, contract.Outcome) {
	inv.Step()
	c.vars[3] = c.vars[1] / c.vars[0]
	return Empty{}, contract.Applied()
}

// Proc04 increments var4 and calls Proc05, which calls back. The pair
// recurses until the host's depth limit aborts the transaction.
func (c *HM25) Proc04(inv *contract.Invocation, _ Empty) (Empty, contract.Outcome) {
	inv.Step()
	c.vars[4]++
	inv.Frame.Enter()
	defer inv.Frame.Leave()
	return c.Proc05(inv, Empty{})
}

// Proc05 increments var5 and calls Proc04.
func (c *HM25) Proc05(inv *contract.Invocation, _ Empty) (Empty, contract.Outcome) {
	inv.Step()
	c.vars[5]++
	inv.Frame.Enter()
	defer inv.Frame.Leave()
	return c.Proc04(inv, Empty{})
}

// Func01 narrows a signed 64-bit input to a byte.
func (c *HM25) Func01(inv *contract.Invocation, in Func01Input) Func01Output {
	inv.Step()
	return Func01Output{Output1: uint8(in.Input1)} //nolint:gosec // truncation is the point
}

// Func02 counts up in byte-sized strides until the counter reaches input2.
// Any bound above the largest reachable counter value loops until the host
// step limit kills it.
func (c *HM25) Func02(inv *contract.Invocation, in Func02Input) Func02Output {
	var out Func02Output
	for uint64(out.Output2) < in.Input2 {
		inv.Step()
		out.Output2 += uint8(func02Stride % 256)
	}
	return out
}

// Func03 divides var3 by the input.
func (c *HM25) Func03(inv *contract.Invocation, in Func03Input) Func03Output {
	inv.Step()
	return Func03Output{Output3: uint64(int64(c.vars[3]) / in.Input3)} //nolint:gosec // sign loss is the point
}

// Func04 calls Func05, which calls back, until the depth limit.
func (c *HM25) Func04(inv *contract.Invocation, _ Empty) Func04Output {
	inv.Step()
	inv.Frame.Enter()
	defer inv.Frame.Leave()
	out := c.Func05(inv, Empty{})
	return Func04Output{Output4: out.Var5 + 1}
}

// Func05 calls Func04.
func (c *HM25) Func05(inv *contract.Invocation, _ Empty) Func05Output {
	inv.Step()
	inv.Frame.Enter()
	defer inv.Frame.Leave()
	out := c.Func04(inv, Empty{})
	return Func05Output{Var5: out.Output4 + 1}
}

type hm25State struct {
	Vars        [6]uint8 `json:"vars"`
	Initialized bool     `json:"initialized"`
}

// Snapshot implements contract.Stateful.
func (c *HM25) Snapshot() ([]byte, error) {
	return json.Marshal(hm25State{Vars: c.vars, Initialized: c.initialized})
}

// Restore implements contract.Stateful.
func (c *HM25) Restore(data []byte) error {
	var st hm25State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("fixtures: restore %s: %w", HM25Name, err)
	}
	c.vars = st.Vars
	c.initialized = st.Initialized
	return nil
}
