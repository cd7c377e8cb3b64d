package patient

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/internal/domain/product"
	"github.com/dhos/dhos/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.Create)
	api.GET("/patients/:id", h.Get)
	api.PATCH("/patients/:id", h.Update)
	api.DELETE("/patients/:id", h.Delete)
	api.GET("/patients/validate/:nhs_number", h.ValidateNHSNumber)

	api.POST("/patients/:id/diagnoses", h.AddDiagnosis)
	api.PUT("/patients/:id/diagnoses/:diagnosis_id/management-plan", h.UpdateManagementPlan)
	api.POST("/patients/:id/doses/:dose_id", h.AmendDose)
	api.POST("/patients/:id/pregnancies", h.AddPregnancy)
	api.POST("/patients/:id/pregnancies/:pregnancy_id/deliveries", h.AddDelivery)
	api.POST("/patients/:id/pregnancies/:pregnancy_id/first-medication", h.RecordFirstMedication)
	api.POST("/patients/:id/bookmarks/:location_id", h.Bookmark)
	api.DELETE("/patients/:id/bookmarks/:location_id", h.Unbookmark)
	api.POST("/patients/:id/terms-agreements", h.AgreeTerms)
	api.POST("/patients/:id/products/:product_id/close", h.CloseProduct)
	api.POST("/patients/:id/products/:product_id/start-monitoring", h.StartMonitoring)
	api.POST("/patients/:id/products/:product_id/stop-monitoring", h.StopMonitoring)
	api.DELETE("/patients/:id/subentities/:subentity_id", h.DeleteSubentity)
}

// requestContext attaches the acting clinician, taken from the
// X-Clinician-Id header, so mutations are attributed in audit events.
func requestContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if id := c.Request().Header.Get(middleware.ClinicianHeader); id != "" {
		ctx = WithClinician(ctx, id)
	}
	return ctx
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(requestContext(c), &p); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(requestContext(c), id)
	if err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.Update(requestContext(c), &p); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(requestContext(c), id); err != nil {
		return derr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ValidateNHSNumber(c echo.Context) error {
	exists, err := h.svc.CheckNHSNumber(requestContext(c), c.Param("nhs_number"), c.QueryParam("product_name"))
	if err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": true, "in_use": exists})
}

func (h *Handler) AddDiagnosis(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var d Diagnosis
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddDiagnosis(requestContext(c), id, &d); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateManagementPlan(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	diagnosisID, err := pathUUID(c, "diagnosis_id")
	if err != nil {
		return err
	}
	var mp ManagementPlan
	if err := c.Bind(&mp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateManagementPlan(requestContext(c), id, diagnosisID, &mp); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, mp)
}

func (h *Handler) AmendDose(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	doseID, err := pathUUID(c, "dose_id")
	if err != nil {
		return err
	}
	var d Dose
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AmendDose(requestContext(c), id, doseID, &d); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) AddPregnancy(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var pr Pregnancy
	if err := c.Bind(&pr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddPregnancy(requestContext(c), id, &pr); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, pr)
}

func (h *Handler) AddDelivery(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	pregnancyID, err := pathUUID(c, "pregnancy_id")
	if err != nil {
		return err
	}
	var d Delivery
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddDelivery(requestContext(c), id, pregnancyID, &d); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) RecordFirstMedication(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	pregnancyID, err := pathUUID(c, "pregnancy_id")
	if err != nil {
		return err
	}
	var body struct {
		FirstMedicationTaken string     `json:"first_medication_taken"`
		RecordedAt           *time.Time `json:"first_medication_taken_recorded"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	recordedAt := time.Now()
	if body.RecordedAt != nil {
		recordedAt = *body.RecordedAt
	}
	if err := h.svc.RecordFirstMedication(requestContext(c), id, pregnancyID, body.FirstMedicationTaken, recordedAt); err != nil {
		return derr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Bookmark(c echo.Context) error {
	return h.setBookmark(c, h.svc.Bookmark, http.StatusCreated)
}

func (h *Handler) Unbookmark(c echo.Context) error {
	return h.setBookmark(c, h.svc.Unbookmark, http.StatusNoContent)
}

func (h *Handler) setBookmark(c echo.Context, op func(context.Context, uuid.UUID, uuid.UUID) error, status int) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	locationID, err := pathUUID(c, "location_id")
	if err != nil {
		return err
	}
	if err := op(requestContext(c), id, locationID); err != nil {
		return derr.HTTPError(err)
	}
	return c.NoContent(status)
}

func (h *Handler) AgreeTerms(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var t TermsAgreement
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AgreeTerms(requestContext(c), id, &t); err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) CloseProduct(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	productID, err := pathUUID(c, "product_id")
	if err != nil {
		return err
	}
	var body struct {
		ClosedDate        time.Time `json:"closed_date"`
		ClosedReason      *string   `json:"closed_reason"`
		ClosedReasonOther *string   `json:"closed_reason_other"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CloseProduct(requestContext(c), id, productID, body.ClosedDate, body.ClosedReason, body.ClosedReasonOther); err != nil {
		return derr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartMonitoring(c echo.Context) error {
	return h.setMonitoring(c, h.svc.StartMonitoring)
}

func (h *Handler) StopMonitoring(c echo.Context) error {
	return h.setMonitoring(c, h.svc.StopMonitoring)
}

func (h *Handler) setMonitoring(c echo.Context, op func(context.Context, uuid.UUID, uuid.UUID) (*product.Enrollment, error)) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	productID, err := pathUUID(c, "product_id")
	if err != nil {
		return err
	}
	e, err := op(requestContext(c), id, productID)
	if err != nil {
		return derr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteSubentity(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	subentityID, err := pathUUID(c, "subentity_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSubentity(requestContext(c), id, subentityID); err != nil {
		return derr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
