package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/types"
)

// parseFieldFlags reads repeated --field key=value flags and converts
// each to the bare text/int/bool/list kind implied by its literal form.
// Callers that know the issue's type should use parseFieldFlagsForType
// instead, which consults the type's declared field schema rather than
// guessing from the flag's literal syntax.
func parseFieldFlags(cmd *cobra.Command) (map[string]types.FieldValue, error) {
	return parseRawFieldFlags(cmd, func(_, val string) types.FieldValue { return inferFieldValue(val) })
}

// parseFieldFlagsForType is parseFieldFlags, but each value is coerced
// against typeName's declared field schema in reg when one exists.
func parseFieldFlagsForType(cmd *cobra.Command, reg fieldSchemaSource, typeName string) (map[string]types.FieldValue, error) {
	return parseRawFieldFlags(cmd, func(key, val string) types.FieldValue {
		return coerceFieldForType(reg, typeName, key, val)
	})
}

func parseRawFieldFlags(cmd *cobra.Command, convert func(key, val string) types.FieldValue) (map[string]types.FieldValue, error) {
	raw, _ := cmd.Flags().GetStringSlice("field")
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]types.FieldValue, len(raw))
	for _, kv := range raw {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --field %q: expected key=value", kv)
		}
		out[key] = convert(key, val)
	}
	return out, nil
}

func inferFieldValue(val string) types.FieldValue {
	if b, err := strconv.ParseBool(val); err == nil {
		return types.NewBool(b)
	}
	if n, err := strconv.ParseInt(val, 10, 64); err == nil {
		return types.NewInt(n)
	}
	if strings.Contains(val, ",") {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return types.NewList(parts)
	}
	return types.NewText(val)
}

// coerceFieldForType uses the type's declared field schema, when present,
// to pick the correct FieldValue kind rather than guessing from syntax.
func coerceFieldForType(reg fieldSchemaSource, typeName, key, val string) types.FieldValue {
	tpl := reg.GetType(typeName)
	if tpl == nil {
		return inferFieldValue(val)
	}
	for _, f := range tpl.FieldsSchema {
		if f.Name != key {
			continue
		}
		switch f.Type {
		case types.FieldInt:
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				return types.NewInt(n)
			}
		case types.FieldBool:
			if b, err := strconv.ParseBool(val); err == nil {
				return types.NewBool(b)
			}
		case types.FieldDate:
			return types.NewDate(val)
		case types.FieldEnum:
			return types.NewEnum(val)
		case types.FieldList:
			return types.NewList(strings.Split(val, ","))
		}
		return types.NewText(val)
	}
	return inferFieldValue(val)
}

// fieldSchemaSource narrows *templates.Registry to the one method
// coerceFieldForType needs, so this file doesn't have to import the
// templates package directly.
type fieldSchemaSource interface {
	GetType(name string) *types.TypeTemplate
}
