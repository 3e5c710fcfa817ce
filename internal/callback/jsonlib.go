package callback

import (
	"encoding/json"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// jsonLib adds helpers for editing JSON object values as text, so transform
// expressions can return a rewritten document without rebuilding it field by
// field:
//
//	jsonSet(value, "age_group", "senior") -> value with the field set
//	jsonDel(value, "password")            -> value with the field removed
//
// The third jsonSet argument may be any JSON-encodable scalar, list, or map.
func jsonLib() cel.EnvOption {
	return cel.Lib(&jsonEditLib{})
}

type jsonEditLib struct{}

func (l *jsonEditLib) LibraryName() string { return "kvedit.json" }

func (l *jsonEditLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("jsonSet",
			cel.Overload("jsonSet_string_string_dyn",
				[]*cel.Type{cel.StringType, cel.StringType, cel.DynType},
				cel.StringType,
				cel.FunctionBinding(jsonSet))),
		cel.Function("jsonDel",
			cel.Overload("jsonDel_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.StringType,
				cel.BinaryBinding(jsonDel))),
	}
}

func (l *jsonEditLib) ProgramOptions() []cel.ProgramOption { return nil }

func decodeDoc(v ref.Val) (map[string]any, ref.Val) {
	doc, ok := v.Value().(string)
	if !ok {
		return nil, types.NewErr("jsonSet/jsonDel: value must be a string")
	}
	m := map[string]any{}
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, types.NewErr("value is not a JSON object: %v", err)
	}
	return m, nil
}

func encodeDoc(m map[string]any) ref.Val {
	out, err := json.Marshal(m)
	if err != nil {
		return types.NewErr("encode JSON: %v", err)
	}
	return types.String(out)
}

func jsonSet(args ...ref.Val) ref.Val {
	m, errVal := decodeDoc(args[0])
	if errVal != nil {
		return errVal
	}
	field, ok := args[1].Value().(string)
	if !ok {
		return types.NewErr("jsonSet: field must be a string")
	}
	m[field] = args[2].Value()
	return encodeDoc(m)
}

func jsonDel(docVal, fieldVal ref.Val) ref.Val {
	m, errVal := decodeDoc(docVal)
	if errVal != nil {
		return errVal
	}
	field, ok := fieldVal.Value().(string)
	if !ok {
		return types.NewErr("jsonDel: field must be a string")
	}
	delete(m, field)
	return encodeDoc(m)
}
