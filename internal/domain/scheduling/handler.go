package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment)

	api.GET("/professionals/:id/availability", h.GetWeeklyTemplate)
	api.PUT("/professionals/:id/availability", h.ReplaceWeeklyTemplate)
	api.GET("/professionals/:id/availability/resolved", h.ResolveDay)
	api.GET("/professionals/:id/availability/slots", h.FindFreeSlots)
	api.GET("/professionals/:id/availability-exceptions", h.ListExceptions)
	api.PUT("/professionals/:id/availability-exceptions", h.ReplaceExceptions)

	api.GET("/rooms", h.ListRooms)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid id %q", c.Param("id"))
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("%s must be a UUID", name)
	}
	return &id, nil
}

func queryDate(c echo.Context, name string) (Date, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return Date{}, nil
	}
	d, err := ParseDate(raw)
	if err != nil {
		return Date{}, apperror.Validation("%s: %s", name, err.Error())
	}
	return d, nil
}

// bind decodes the request body. Decoder messages name the offending value,
// so they are passed through to the caller.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return apperror.Validation("malformed request body: %v", he.Message)
		}
		return apperror.Validation("malformed request body")
	}
	return nil
}

// -- Appointment Handlers --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req CreateAppointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	var (
		f   AppointmentFilter
		err error
	)
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
	}
	if f.ProfessionalID, err = queryUUID(c, "professionalId"); err != nil {
		return err
	}
	if f.PatientID, err = queryUUID(c, "patientId"); err != nil {
		return err
	}
	if raw := c.QueryParam("status"); raw != "" {
		st := Status(raw)
		f.Status = &st
	}
	items, err := h.svc.ListAppointments(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch AppointmentPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Availability Handlers --

func (h *Handler) GetWeeklyTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	blocks, err := h.svc.GetWeeklyTemplate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, blocks)
}

func (h *Handler) ReplaceWeeklyTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ReplaceWeeklyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	blocks, err := h.svc.ReplaceWeeklyTemplate(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, blocks)
}

func (h *Handler) ResolveDay(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	if date.IsZero() {
		return apperror.Validation("date is required")
	}
	day, err := h.svc.ResolveDay(c.Request().Context(), id, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) FindFreeSlots(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	duration := 0
	if raw := c.QueryParam("duration"); raw != "" {
		if duration, err = strconv.Atoi(raw); err != nil {
			return apperror.Validation("duration must be a number of minutes")
		}
	}
	slots, err := h.svc.FindFreeSlots(c.Request().Context(), id, date, duration)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) ListExceptions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return err
	}
	rows, err := h.svc.ListExceptions(c.Request().Context(), id, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) ReplaceExceptions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ReplaceExceptionsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rows, err := h.svc.ReplaceExceptions(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// RoomsResponse lists the configured rooms.
type RoomsResponse struct {
	Clinical []string `json:"clinical"`
	Office   string   `json:"office"`
}

func (h *Handler) ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, RoomsResponse{
		Clinical: h.svc.policy.ClinicalRooms(),
		Office:   h.svc.policy.OfficeRoom(),
	})
}
