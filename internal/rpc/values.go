package rpc

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"

	"github.com/funvibe/glitteral/internal/builtins"
)

// valueToMessage encodes a host value as a glitteral.v1.Value.
func valueToMessage(md *desc.MessageDescriptor, v builtins.Value) (*dynamic.Message, error) {
	msg := dynamic.NewMessage(md)
	kind := builtins.TypeName(v)
	if err := msg.TrySetFieldByName("kind", kind); err != nil {
		return nil, err
	}

	var err error
	switch x := v.(type) {
	case nil:
	case int64:
		err = msg.TrySetFieldByName("int_value", x)
	case float64:
		err = msg.TrySetFieldByName("float_value", x)
	case bool:
		err = msg.TrySetFieldByName("bool_value", x)
	case string:
		err = msg.TrySetFieldByName("string_value", x)
	case *builtins.IntList:
		for _, item := range x.Items() {
			if err = msg.TryAddRepeatedFieldByName("list_value", item); err != nil {
				break
			}
		}
	case builtins.IntDict:
		for k, item := range x {
			if err = msg.TryPutMapFieldByName("dict_value", k, item); err != nil {
				break
			}
		}
	default:
		return nil, fmt.Errorf("cannot encode %s value", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s value: %w", kind, err)
	}
	return msg, nil
}

// messageToValue decodes a glitteral.v1.Value.
func messageToValue(msg *dynamic.Message) (builtins.Value, error) {
	kind, _ := msg.GetFieldByName("kind").(string)
	switch kind {
	case builtins.TypeNil:
		return nil, nil
	case builtins.TypeInt:
		n, _ := msg.GetFieldByName("int_value").(int64)
		return n, nil
	case builtins.TypeFloat:
		f, _ := msg.GetFieldByName("float_value").(float64)
		return f, nil
	case builtins.TypeBool:
		b, _ := msg.GetFieldByName("bool_value").(bool)
		return b, nil
	case builtins.TypeString:
		s, _ := msg.GetFieldByName("string_value").(string)
		return s, nil
	case builtins.TypeList:
		raw, _ := msg.GetFieldByName("list_value").([]interface{})
		items := make([]int64, 0, len(raw))
		for _, r := range raw {
			n, ok := r.(int64)
			if !ok {
				return nil, fmt.Errorf("list element %v is not an int64", r)
			}
			items = append(items, n)
		}
		return builtins.NewList(items...), nil
	case builtins.TypeDict:
		raw, _ := msg.GetFieldByName("dict_value").(map[interface{}]interface{})
		d := make(builtins.IntDict, len(raw))
		for k, r := range raw {
			key, ok := k.(string)
			n, ok2 := r.(int64)
			if !ok || !ok2 {
				return nil, fmt.Errorf("dict entry %v: %v has the wrong types", k, r)
			}
			d[key] = n
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown value kind %q", kind)
}

func valuesToMessages(md *desc.MessageDescriptor, vs []builtins.Value) ([]*dynamic.Message, error) {
	msgs := make([]*dynamic.Message, 0, len(vs))
	for i, v := range vs {
		m, err := valueToMessage(md, v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// repeatedValues decodes a repeated Value field of msg.
func repeatedValues(msg *dynamic.Message, field string) ([]builtins.Value, error) {
	raw, _ := msg.GetFieldByName(field).([]interface{})
	vs := make([]builtins.Value, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(*dynamic.Message)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: unexpected %T", field, i, r)
		}
		v, err := messageToValue(m)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func addMessages(msg *dynamic.Message, field string, items []*dynamic.Message) error {
	for _, item := range items {
		if err := msg.TryAddRepeatedFieldByName(field, item); err != nil {
			return err
		}
	}
	return nil
}
