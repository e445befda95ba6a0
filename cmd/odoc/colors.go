package main

import (
	"fmt"

	"github.com/signadot/odoc/ir"

	"github.com/fatih/color"
)

type Colors struct {
	Field func(string, ...any) string
	Tag   func(string, ...any) string
	Sep   func(string, ...any) string
	Value map[ir.Type]func(string, ...any) string
}

func NewColors() *Colors {
	colors := &Colors{
		Field: color.RGB(196, 96, 16).SprintfFunc(),
		Tag:   color.RGB(74, 92, 138).SprintfFunc(),
		Sep:   color.RGB(255, 0, 196).SprintfFunc(),
		Value: map[ir.Type]func(string, ...any) string{},
	}
	for _, t := range ir.Types() {
		switch {
		case t.IsNumber():
			colors.Value[t] = color.RGB(128, 216, 236).SprintfFunc()
		case t == ir.NullType:
			colors.Value[t] = color.RGB(168, 0, 196).SprintfFunc()
		case t == ir.BoolType:
			colors.Value[t] = color.CyanString
		case t == ir.StringType:
			colors.Value[t] = color.RGB(8, 196, 16).SprintfFunc()
		case t == ir.BinaryType:
			colors.Value[t] = color.RGB(198, 198, 46).SprintfFunc()
		default:
			colors.Value[t] = colorDefault
		}
	}
	return colors
}

// NoColors returns Colors which leave text alone.
func NoColors() *Colors {
	colors := &Colors{
		Field: colorDefault,
		Tag:   colorDefault,
		Sep:   colorDefault,
		Value: map[ir.Type]func(string, ...any) string{},
	}
	for _, t := range ir.Types() {
		colors.Value[t] = colorDefault
	}
	return colors
}

func colorDefault(f string, args ...any) string {
	return fmt.Sprintf(f, args...)
}
