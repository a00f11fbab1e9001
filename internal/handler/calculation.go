package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calculations-api/internal/middleware"
	"github.com/iliyamo/calculations-api/internal/model"
	"github.com/iliyamo/calculations-api/internal/service"
)

// CalculationService is the BREAD surface over calculations.
type CalculationService interface {
	Create(ctx context.Context, ownerID, typ string, inputs []float64) (model.Calculation, error)
	List(ctx context.Context, ownerID string) ([]model.Calculation, error)
	Get(ctx context.Context, id, ownerID string) (model.Calculation, error)
	Update(ctx context.Context, id, ownerID string, inputs *[]float64) (model.Calculation, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// CalculationHandler serves /calculations.  Every route sits behind the
// bearer guard and acts on the caller's records only.
type CalculationHandler struct {
	Calculations CalculationService
}

func NewCalculationHandler(svc CalculationService) *CalculationHandler {
	return &CalculationHandler{Calculations: svc}
}

type createCalculationReq struct {
	Type   string    `json:"type"`
	Inputs []float64 `json:"inputs"`
}

// updateCalculationReq: a missing or null inputs only bumps updated_at.
type updateCalculationReq struct {
	Inputs *[]float64 `json:"inputs"`
}

func (h *CalculationHandler) Create(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req createCalculationReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	calc, err := h.Calculations.Create(ctx, owner, req.Type, req.Inputs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, calc)
}

func (h *CalculationHandler) List(c echo.Context) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	list, err := h.Calculations.List(ctx, owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CalculationHandler) Get(c echo.Context) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	calc, err := h.Calculations.Get(ctx, id, owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, calc)
}

func (h *CalculationHandler) Update(c echo.Context) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return err
	}
	var req updateCalculationReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	calc, err := h.Calculations.Update(ctx, id, owner, req.Inputs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, calc)
}

func (h *CalculationHandler) Delete(c echo.Context) error {
	owner, id, err := ownerAndID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Calculations.Delete(ctx, id, owner); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func ownerID(c echo.Context) (string, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return "", service.ErrUnauthorized
	}
	return u.ID, nil
}

// ownerAndID returns the caller and the canonical form of the :id param.
func ownerAndID(c echo.Context) (string, string, error) {
	owner, err := ownerID(c)
	if err != nil {
		return "", "", err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return "", "", badRequest("invalid calculation id")
	}
	return owner, id.String(), nil
}
