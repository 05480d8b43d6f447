package repository

import "trustcore/internal/security"

// ErrEmailTaken is returned by Create for a duplicate email.
var ErrEmailTaken = security.NewKindError(security.ErrValidation, "email already registered")
