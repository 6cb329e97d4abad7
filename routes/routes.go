package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iPranay05/Skill-Prob-sub002/controllers"
	"github.com/iPranay05/Skill-Prob-sub002/middleware"
	"github.com/iPranay05/Skill-Prob-sub002/services"
)

// Controllers groups the handlers mounted under /api/v1.
type Controllers struct {
	Coupons     *controllers.CouponController
	Enrollments *controllers.EnrollmentController
	Courses     *controllers.CourseController
	Billing     *controllers.BillingController
}

// RegisterRoutes sets up the health check and every API route. A non-empty
// gatewaySecret restricts header identities to requests from the gateway.
func RegisterRoutes(r *gin.Engine, c Controllers, jwtSecret []byte, gatewaySecret string) {
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "OK", "service": "enrollment-service"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.GatewayAuthMiddleware(jwtSecret, gatewaySecret))

	coupons := api.Group("/coupons")
	coupons.POST("/validate", c.Coupons.ValidateCoupon)
	coupons.POST("/apply", c.Coupons.ApplyCoupon)
	coupons.GET("/:code", c.Coupons.GetCoupon)
	coupons.GET("/:code/stats", c.Coupons.CouponStats)

	// Admin-only routes
	couponAdmin := coupons.Group("")
	couponAdmin.Use(middleware.RequireCapability(services.CapCouponManagement))
	couponAdmin.POST("", c.Coupons.CreateCoupon)
	couponAdmin.GET("", c.Coupons.ListCoupons)
	couponAdmin.POST("/generate-code", c.Coupons.GenerateCode)
	couponAdmin.PUT("/:id", c.Coupons.UpdateCoupon)
	couponAdmin.DELETE("/:id", c.Coupons.DeleteCoupon)

	courses := api.Group("/courses/:id")
	courses.GET("/capacity", c.Courses.GetCapacity)
	courses.PUT("/capacity", middleware.RequireCapability(services.CapCapacityManagement), c.Courses.SetCapacity)
	courses.GET("/stats", c.Courses.GetStats)
	courses.GET("/enrollments", c.Enrollments.ListCourseEnrollments)

	enrollments := api.Group("/enrollments")
	enrollments.POST("", c.Enrollments.Enroll)
	enrollments.GET("", c.Enrollments.ListMyEnrollments)
	enrollments.GET("/:id", c.Enrollments.GetEnrollment)
	enrollments.PATCH("/:id/status", c.Enrollments.UpdateStatus)
	enrollments.PATCH("/:id/progress", c.Enrollments.UpdateProgress)

	payments := api.Group("/payments")
	payments.POST("", c.Billing.CreatePayment)
	payments.GET("/:id", c.Billing.GetPayment)
	payments.PATCH("/:id/status", c.Billing.UpdatePaymentStatus)

	subscriptions := api.Group("/subscriptions")
	subscriptions.POST("", c.Billing.CreateSubscription)
	subscriptions.GET("/:id", c.Billing.GetSubscription)
	subscriptions.PATCH("/:id/status", c.Billing.UpdateSubscriptionStatus)
}
