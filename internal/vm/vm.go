// Package vm implements the fetch-decode-execute loop that runs
// compiled Eva bytecode: a fixed-size operand stack, a call-frame
// stack for closures and methods, and the class/instance property
// dispatch spec.md §4.3 describes.
package vm

import (
	"eva/internal/bytecode"
	"eva/internal/gc"
	"eva/internal/value"
)

// frameRecord is what OP_CALL saves and OP_RETURN restores: the
// caller's resume point, its frame base, and the Code/Cells it was
// executing against.
type frameRecord struct {
	returnIP int
	bp       int
	code     *value.CodeObject
	cells    []*value.CellObject
}

// VM is one Eva virtual machine instance: one Registry, one Globals
// table, and one operand stack. It is not safe for concurrent use (Eva
// has no concurrency; see spec.md §5's Non-goals).
type VM struct {
	reg       *value.Registry
	globals   *value.Globals
	collector *gc.Collector
	stack     []value.Value
	sp        int
}

// New returns a VM with a stack of maxStack slots.
func New(reg *value.Registry, globals *value.Globals, collector *gc.Collector, maxStack int) *VM {
	return &VM{
		reg:       reg,
		globals:   globals,
		collector: collector,
		stack:     make([]value.Value, maxStack),
	}
}

// Run executes main (the top-level program, or any standalone Code
// object with no free variables) to completion and returns the single
// value OP_HALT leaves on the stack.
func (vm *VM) Run(main *value.CodeObject) (value.Value, error) {
	code := main
	var cells []*value.CellObject
	bp := 0
	ip := 0
	var frames []frameRecord

	push := func(v value.Value) error {
		if vm.sp >= len(vm.stack) {
			return value.NewError(value.ErrStackOverflow, "stack limit is %d", len(vm.stack))
		}
		vm.stack[vm.sp] = v
		vm.sp++
		return nil
	}
	pop := func() (value.Value, error) {
		if vm.sp == 0 {
			return value.Value{}, value.ErrEmptyStack
		}
		vm.sp--
		return vm.stack[vm.sp], nil
	}
	peek := func(n int) (value.Value, error) {
		if vm.sp-1-n < 0 {
			return value.Value{}, value.ErrEmptyStack
		}
		return vm.stack[vm.sp-1-n], nil
	}

	maybeGC := func() {
		if vm.collector == nil || !vm.reg.ShouldCollect() {
			return
		}
		roots := append([]value.Value(nil), vm.stack[:vm.sp]...)
		roots = append(roots, vm.globals.Values()...)
		for _, c := range cells {
			roots = append(roots, value.FromObject(c))
		}
		for _, f := range frames {
			for _, c := range f.cells {
				roots = append(roots, value.FromObject(c))
			}
		}
		vm.collector.Collect(roots, nil)
	}

	for {
		if ip < 0 || ip >= len(code.Code) {
			return value.Value{}, value.NewError(value.ErrUnknownOpcode, "ip %d out of range in %s", ip, code.Name)
		}
		op := bytecode.Opcode(code.Code[ip])
		ip++

		switch op {
		case bytecode.OpHalt:
			if vm.sp == 0 {
				return value.Nil, nil
			}
			return vm.stack[vm.sp-1], nil

		case bytecode.OpConst:
			idx := int(code.Code[ip])
			ip++
			if err := push(code.Constants[idx]); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpPop:
			if _, err := pop(); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpAdd:
			b, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			a, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			switch {
			case a.IsString() && b.IsString():
				maybeGC()
				s := vm.reg.NewString(a.Obj.(*value.StringObject).Value + b.Obj.(*value.StringObject).Value)
				if err := push(value.FromObject(s)); err != nil {
					return value.Value{}, err
				}
			case a.IsNumber() && b.IsNumber():
				if err := push(value.Number(a.Num + b.Num)); err != nil {
					return value.Value{}, err
				}
			default:
				return value.Value{}, value.NewError(value.ErrType, "+ requires two numbers or two strings")
			}

		case bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
			b, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			a, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			if !a.IsNumber() || !b.IsNumber() {
				return value.Value{}, value.NewError(value.ErrType, "arithmetic requires two numbers")
			}
			var result float64
			switch op {
			case bytecode.OpSub:
				result = a.Num - b.Num
			case bytecode.OpMul:
				result = a.Num * b.Num
			case bytecode.OpDiv:
				result = a.Num / b.Num
			}
			if err := push(value.Number(result)); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpCompare:
			cmp := bytecode.Opcode(code.Code[ip])
			ip++
			b, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			a, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			result, err := compare(cmp, a, b)
			if err != nil {
				return value.Value{}, err
			}
			if err := push(value.Boolean(result)); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpGetGlobal:
			idx := int(code.Code[ip])
			ip++
			if idx >= vm.globals.Len() {
				return value.Value{}, value.NewError(value.ErrIndexOutOfRange, "global index %d", idx)
			}
			if err := push(vm.globals.Get(idx)); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpSetGlobal:
			idx := int(code.Code[ip])
			ip++
			v, err := peek(0)
			if err != nil {
				return value.Value{}, err
			}
			vm.globals.Set(idx, v)

		case bytecode.OpGetLocal:
			idx := int(code.Code[ip])
			ip++
			if err := push(vm.stack[bp+idx]); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpSetLocal:
			idx := int(code.Code[ip])
			ip++
			v, err := peek(0)
			if err != nil {
				return value.Value{}, err
			}
			vm.stack[bp+idx] = v

		case bytecode.OpGetCell:
			idx := int(code.Code[ip])
			ip++
			if idx >= len(cells) {
				return value.Value{}, value.NewError(value.ErrIndexOutOfRange, "cell index %d", idx)
			}
			if err := push(cells[idx].Value); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpSetCell:
			idx := int(code.Code[ip])
			ip++
			v, err := peek(0)
			if err != nil {
				return value.Value{}, err
			}
			if idx < len(cells) {
				cells[idx].Value = v
			} else {
				maybeGC()
				for len(cells) < idx {
					cells = append(cells, vm.reg.NewCell(value.Nil))
				}
				cells = append(cells, vm.reg.NewCell(v))
			}

		case bytecode.OpLoadCell:
			idx := int(code.Code[ip])
			ip++
			if idx >= len(cells) {
				return value.Value{}, value.NewError(value.ErrIndexOutOfRange, "cell index %d", idx)
			}
			if err := push(value.FromObject(cells[idx])); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpScopeExit:
			n := int(code.Code[ip])
			ip++
			result, err := peek(0)
			if err != nil {
				return value.Value{}, err
			}
			if vm.sp-1-n < 0 {
				return value.Value{}, value.ErrEmptyStack
			}
			vm.stack[vm.sp-1-n] = result
			vm.sp -= n

		case bytecode.OpMakeFunction:
			n := int(code.Code[ip])
			ip++
			codeVal, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			calleeCode, ok := codeVal.Obj.(*value.CodeObject)
			if !ok {
				return value.Value{}, value.NewError(value.ErrType, "MAKE_FUNCTION target is not code")
			}
			capturedCells := make([]*value.CellObject, n)
			for k := n - 1; k >= 0; k-- {
				v, err := pop()
				if err != nil {
					return value.Value{}, err
				}
				co, ok := v.Obj.(*value.CellObject)
				if !ok {
					return value.Value{}, value.NewError(value.ErrType, "MAKE_FUNCTION operand is not a cell")
				}
				capturedCells[k] = co
			}
			maybeGC()
			fn := vm.reg.NewFunction(calleeCode, capturedCells)
			if err := push(value.FromObject(fn)); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpCall:
			argc := int(code.Code[ip])
			ip++
			callee, err := peek(argc)
			if err != nil {
				return value.Value{}, err
			}
			switch fn := callee.Obj.(type) {
			case *value.NativeObject:
				args := append([]value.Value(nil), vm.stack[vm.sp-argc:vm.sp]...)
				vm.sp -= argc + 1
				result, err := fn.Fn(args)
				if err != nil {
					return value.Value{}, err
				}
				if err := push(result); err != nil {
					return value.Value{}, err
				}
			case *value.FunctionObject:
				frames = append(frames, frameRecord{returnIP: ip, bp: bp, code: code, cells: cells})
				bp = vm.sp - argc - 1
				code = fn.Code
				cells = append([]*value.CellObject(nil), fn.Cells...)
				ip = 0
			default:
				return value.Value{}, value.NewError(value.ErrType, "cannot call %s", callee.String())
			}

		case bytecode.OpReturn:
			if len(frames) == 0 {
				return value.Value{}, value.NewError(value.ErrEmptyStack, "return with no caller frame")
			}
			top := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			ip = top.returnIP
			bp = top.bp
			code = top.code
			cells = top.cells

		case bytecode.OpNew:
			classVal, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			classObj, ok := classVal.Obj.(*value.ClassObject)
			if !ok {
				return value.Value{}, value.NewError(value.ErrType, "new target is not a class")
			}
			maybeGC()
			inst := vm.reg.NewInstance(classObj)
			ctor, ok := classObj.GetProp("constructor")
			if !ok {
				return value.Value{}, value.NewError(value.ErrUnresolvedProperty, "%s has no constructor", classObj.Name)
			}
			if err := push(ctor); err != nil {
				return value.Value{}, err
			}
			if err := push(value.FromObject(inst)); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpGetProp:
			idx := int(code.Code[ip])
			ip++
			name := code.Constants[idx].Obj.(*value.StringObject).Value
			target, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			v, ok := getProp(target, name)
			if !ok {
				return value.Value{}, value.NewError(value.ErrUnresolvedProperty, "%s", name)
			}
			if err := push(v); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpSetProp:
			idx := int(code.Code[ip])
			ip++
			name := code.Constants[idx].Obj.(*value.StringObject).Value
			v, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			target, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			if !setProp(target, name, v) {
				return value.Value{}, value.NewError(value.ErrType, "cannot set property on %s", target.String())
			}
			if err := push(v); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpJmp:
			target := int(bytecode.ReadUint16(code, ip))
			ip = target

		case bytecode.OpJmpIfFalse:
			target := int(bytecode.ReadUint16(code, ip))
			ip += 2
			cond, err := pop()
			if err != nil {
				return value.Value{}, err
			}
			if !cond.Truthy() {
				ip = target
			}

		default:
			return value.Value{}, value.NewError(value.ErrUnknownOpcode, "0x%02X", byte(op))
		}
	}
}

func compare(cmp bytecode.Opcode, a, b value.Value) (bool, error) {
	if cmp == bytecode.CompareEQ {
		return value.Equal(a, b), nil
	}
	if cmp == bytecode.CompareNE {
		return !value.Equal(a, b), nil
	}
	if a.IsNumber() && b.IsNumber() {
		switch cmp {
		case bytecode.CompareLT:
			return a.Num < b.Num, nil
		case bytecode.CompareGT:
			return a.Num > b.Num, nil
		case bytecode.CompareGE:
			return a.Num >= b.Num, nil
		case bytecode.CompareLE:
			return a.Num <= b.Num, nil
		default:
			return false, value.NewError(value.ErrUnknownOpcode, "unrecognized comparator %d", cmp)
		}
	}
	if a.IsString() && b.IsString() {
		as := a.Obj.(*value.StringObject).Value
		bs := b.Obj.(*value.StringObject).Value
		switch cmp {
		case bytecode.CompareLT:
			return as < bs, nil
		case bytecode.CompareGT:
			return as > bs, nil
		case bytecode.CompareGE:
			return as >= bs, nil
		case bytecode.CompareLE:
			return as <= bs, nil
		default:
			return false, value.NewError(value.ErrUnknownOpcode, "unrecognized comparator %d", cmp)
		}
	}
	return false, value.NewError(value.ErrType, "relational comparison requires two numbers or two strings")
}

func getProp(target value.Value, name string) (value.Value, bool) {
	if !target.IsObject() {
		return value.Value{}, false
	}
	switch t := target.Obj.(type) {
	case *value.InstanceObject:
		return t.GetProp(name)
	case *value.ClassObject:
		return t.GetProp(name)
	default:
		return value.Value{}, false
	}
}

func setProp(target value.Value, name string, v value.Value) bool {
	if !target.IsObject() {
		return false
	}
	switch t := target.Obj.(type) {
	case *value.InstanceObject:
		t.SetProp(name, v)
		return true
	case *value.ClassObject:
		t.Properties[name] = v
		return true
	default:
		return false
	}
}
