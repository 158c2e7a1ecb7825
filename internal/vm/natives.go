package vm

import (
	"fmt"

	"eva/internal/value"
)

// InstallNatives registers spec.md §6's mandatory preinstalled globals
// (native-square/1, sum/2, VERSION=1) plus the additional natives
// SPEC_FULL.md §6 adds (native-print/1, native-strlen/1) into globals,
// allocating the Native objects through reg. Called once at
// driver.Machine construction, the way the teacher's manifest-backed
// tools install their fixed config before any user program runs.
func InstallNatives(reg *value.Registry, globals *value.Globals) {
	define := func(name string, arity int, fn value.NativeFn) {
		native := reg.NewNative(name, arity, fn)
		globals.DefineValue(name, value.FromObject(native))
	}

	define("native-square", 1, func(args []value.Value) (value.Value, error) {
		if !args[0].IsNumber() {
			return value.Nil, value.NewError(value.ErrType, "native-square expects a number")
		}
		return value.Number(args[0].Num * args[0].Num), nil
	})

	define("sum", 2, func(args []value.Value) (value.Value, error) {
		if !args[0].IsNumber() || !args[1].IsNumber() {
			return value.Nil, value.NewError(value.ErrType, "sum expects two numbers")
		}
		return value.Number(args[0].Num + args[1].Num), nil
	})

	define("native-print", 1, func(args []value.Value) (value.Value, error) {
		fmt.Println(args[0].String())
		return args[0], nil
	})

	define("native-strlen", 1, func(args []value.Value) (value.Value, error) {
		if !args[0].IsString() {
			return value.Nil, value.NewError(value.ErrType, "native-strlen expects a string")
		}
		return value.Number(float64(len(args[0].Obj.(*value.StringObject).Value))), nil
	})

	globals.DefineValue("VERSION", value.Number(1))
}
