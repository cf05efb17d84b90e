package main

import (
	"encoding/json"
	"errors"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 1000
)

type validator struct {
	errors map[string]string
}

func newValidator() *validator {
	return &validator{
		errors: make(map[string]string),
	}
}

func (v *validator) toError() error {
	if v == nil {
		return errors.New("")
	}
	data, err := json.Marshal(v.errors)
	if err != nil {
		return err
	}
	return errors.New(string(data))
}

func (v *validator) hasErrors() bool {
	return len(v.errors) != 0
}

func (v *validator) checkCond(cond bool, key, msg string) {
	if cond {
		return
	}
	if _, ok := v.errors[key]; !ok {
		v.errors[key] = msg
	}
}

func (v *validator) checkTitle(title string) {
	v.checkCond(title != "", "title", "must be provided")
	v.checkCond(len(title) <= maxTitleLength, "title", "must be atmost 200 characters")
}

func (v *validator) checkDescription(description string) {
	v.checkCond(len(description) <= maxDescriptionLength, "description", "must be atmost 1000 characters")
}
