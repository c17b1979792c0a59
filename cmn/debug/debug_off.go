//go:build !debug

// Package debug provides build-tag gated assertions: a no-op build (this
// file) for production, and an active build (debug_on.go, `-tags debug`) used
// when developing against the union-find/scoring invariants of core/roi.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

func ON() bool { return false }

func Func(_ func()) {}

func Assert(_ bool, _ ...any)            {}
func AssertFunc(_ func() bool, _ ...any) {}
func AssertNoErr(_ error)                {}
func Assertf(_ bool, _ string, _ ...any) {}
