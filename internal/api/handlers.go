package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"plan-tracker/internal/model"
	"plan-tracker/internal/service"
)

type handler struct {
	services Services
}

type statusRequest struct {
	Status         model.TaskStatus `json:"status"`
	LastTaskOfPlan bool             `json:"lastTaskOfPlan"`
}

func (h *handler) listTemplates(c echo.Context) error {
	sortBy := c.QueryParam("sort")
	if sortBy == "" {
		sortBy = "likes"
	}
	query := service.TemplateQuery{Category: c.QueryParam("category"), SortBy: sortBy}
	if raw := c.QueryParam("owner"); raw != "" {
		owner, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || owner == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid owner")
		}
		query.OwnerID = uint(owner)
	}
	templates, err := h.services.Templates.List(c.Request().Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, templates)
}

func (h *handler) getTemplate(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	template, err := h.services.Templates.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, template)
}

func (h *handler) createTemplate(c echo.Context) error {
	var input service.TemplateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	template, err := h.services.Templates.Create(c.Request().Context(), currentUserID(c), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, template)
}

func (h *handler) startPlan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	plan, err := h.services.Plans.StartPlan(c.Request().Context(), currentUserID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, plan)
}

func (h *handler) me(c echo.Context) error {
	digest, err := h.services.Digest.Build(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, digest)
}

func (h *handler) setTaskStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	task, err := h.services.Scoring.SetTaskStatus(c.Request().Context(), id, req.Status, service.SetStatusOptions{
		ActorID:        currentUserID(c),
		LastTaskOfPlan: req.LastTaskOfPlan,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handler) addTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var input service.TaskInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	task, err := h.services.Plans.AddTask(c.Request().Context(), currentUserID(c), id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
