// Package logx is a thin structured logging layer over zerolog.
//
// It exists so the rest of the codebase logs through one small API
// (Logger + Field helpers) while sink wiring (console, file) and level
// changes stay swappable at runtime via Service.Apply().
package logx
