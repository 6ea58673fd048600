package shared

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected by form validation.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate")
	// ErrConflict covers state that forbids the operation, e.g. remaining members.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned for inactive accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage converts internal errors into French messages safe to show.
func UserSafeMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Données invalides. Vérifiez les champs du formulaire."
	case errors.Is(err, ErrNotFound):
		return "Élément introuvable."
	case errors.Is(err, ErrDuplicate):
		return "Un enregistrement identique existe déjà."
	case errors.Is(err, ErrConflict):
		var cerr *ConflictError
		if errors.As(err, &cerr) && cerr.Message != "" {
			return cerr.Message
		}
		return "Opération impossible dans l'état actuel."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email ou mot de passe incorrect"
	case errors.Is(err, ErrAccountDisabled):
		return "Compte désactivé"
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Session expirée, veuillez réessayer."
	default:
		return "Une erreur est survenue. Veuillez réessayer."
	}
}

// ConflictError carries a user-facing explanation for ErrConflict.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Message }

// Unwrap exposes ErrConflict to errors.Is.
func (e *ConflictError) Unwrap() error { return ErrConflict }

// TranslatePgError maps driver errors onto the shared sentinels.
func TranslatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return errors.Join(ErrDuplicate, err)
		case "23503":
			return errors.Join(&ConflictError{Message: "Enregistrement lié à d'autres données."}, err)
		}
	}
	return err
}

// IsDuplicate reports whether err carries ErrDuplicate.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
