package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"driverledger/pkg/address"
	"driverledger/pkg/models"
	"driverledger/service"
)

type handler struct {
	svc service.IServiceManager
}

type registerPlatformRequest struct {
	Name string `json:"name"`
}

type registerDriverRequest struct {
	DriverIdentity string `json:"driver_identity"`
	Name           string `json:"name"`
	LicensePlate   string `json:"license_plate"`
}

type leaveReviewRequest struct {
	Rating         int    `json:"rating"`
	ContentPointer string `json:"content_pointer"`
}

type driverView struct {
	*models.DriverProfile
	AverageRating *float64 `json:"average_rating"`
}

func newDriverView(d *models.DriverProfile) driverView {
	v := driverView{DriverProfile: d}
	if avg, ok := d.AverageRating(); ok {
		v.AverageRating = &avg
	}
	return v
}

func addressParam(c *gin.Context, name string) (address.Address, bool) {
	addr, err := address.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %s: %v", service.ErrInvalidArgument, name, err))
		return address.Zero, false
	}
	return addr, true
}

func uintQuery(c *gin.Context, name string) (uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %s must be a non-negative integer", service.ErrInvalidArgument, name))
		return 0, false
	}
	return n, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, fmt.Errorf("%w: malformed body: %v", service.ErrInvalidArgument, err))
		return false
	}
	return true
}

func (h *handler) registerPlatform(c *gin.Context) {
	var req registerPlatformRequest
	if !bindJSON(c, &req) {
		return
	}
	platform, err := h.svc.Platform().Register(c.Request.Context(), identityFrom(c), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusCreated, platform)
}

func (h *handler) getPlatform(c *gin.Context) {
	ref, ok := addressParam(c, "address")
	if !ok {
		return
	}
	platform, err := h.svc.Platform().Get(c.Request.Context(), ref)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusOK, platform)
}

func (h *handler) registerDriver(c *gin.Context) {
	ref, ok := addressParam(c, "address")
	if !ok {
		return
	}
	var req registerDriverRequest
	if !bindJSON(c, &req) {
		return
	}
	driver, mapping, err := h.svc.Driver().Register(c.Request.Context(), service.RegisterDriverRequest{
		PlatformAuthority: identityFrom(c),
		PlatformRef:       ref,
		Driver:            models.Identity(req.DriverIdentity),
		Name:              req.Name,
		LicensePlate:      req.LicensePlate,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"driver": newDriverView(driver), "plate": mapping})
}

func (h *handler) getDriver(c *gin.Context) {
	ref, ok := addressParam(c, "address")
	if !ok {
		return
	}
	driver, err := h.svc.Driver().Get(c.Request.Context(), ref)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusOK, newDriverView(driver))
}

func (h *handler) getDriverByPlate(c *gin.Context) {
	driver, err := h.svc.Driver().GetByPlate(c.Request.Context(), c.Param("plate"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusOK, newDriverView(driver))
}

func (h *handler) leaveReview(c *gin.Context) {
	ref, ok := addressParam(c, "address")
	if !ok {
		return
	}
	var req leaveReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := h.svc.Review().Leave(c.Request.Context(), ref, identityFrom(c), req.Rating, req.ContentPointer)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusCreated, review)
}

func (h *handler) listReviews(c *gin.Context) {
	ref, ok := addressParam(c, "address")
	if !ok {
		return
	}
	offset, ok := uintQuery(c, "offset")
	if !ok {
		return
	}
	limit, ok := uintQuery(c, "limit")
	if !ok {
		return
	}
	reviews, err := h.svc.Review().List(c.Request.Context(), ref, offset, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusOK, reviews)
}

func (h *handler) getReview(c *gin.Context) {
	ref, ok := addressParam(c, "address")
	if !ok {
		return
	}
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: index must be a non-negative integer", service.ErrInvalidArgument))
		return
	}
	review, err := h.svc.Review().Get(c.Request.Context(), ref, index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	success(c, http.StatusOK, review)
}
