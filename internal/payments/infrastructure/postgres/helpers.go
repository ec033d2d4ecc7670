package postgres

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"eventmanagement/internal/common/types"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func amountToNumeric(value types.Amount) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   value.Coefficient(),
		Exp:   value.Exponent(),
		Valid: true,
	}
}

func numericToAmount(value pgtype.Numeric) (types.Amount, error) {
	if !value.Valid {
		return types.Amount{}, fmt.Errorf("numeric is NULL")
	}
	if value.NaN {
		return types.Amount{}, fmt.Errorf("numeric is NaN")
	}
	if value.InfinityModifier != pgtype.Finite {
		return types.Amount{}, fmt.Errorf("numeric is %s", value.InfinityModifier)
	}

	intVal := value.Int
	if intVal == nil {
		intVal = big.NewInt(0)
	}
	return types.NewAmount(decimal.NewFromBigInt(intVal, value.Exp)), nil
}

// uuidArg converts a validated domain identifier into a query argument.
func uuidArg(id fmt.Stringer) (uuid.UUID, error) {
	u, err := uuid.Parse(id.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid identifier %q: %w", id.String(), err)
	}
	return u, nil
}
