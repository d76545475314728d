package handlers

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the API routes onto a gin engine with the default
// logger and recovery middleware.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.Default()

	courses := router.Group("/courses")
	{
		courses.GET("/", h.GetCourses)
		courses.GET("/:id", h.GetCourse)
		courses.GET("/:id/grades", h.GetGradedGroups)

		// Group routes within a course
		courses.GET("/:id/groups", h.GetGroups)
		courses.GET("/:id/groups/:group/labs", h.GetLabs)
		courses.GET("/:id/groups/:group/grades", h.GetGradeHistory)
		courses.POST("/:id/groups/:group/register", h.Register)
		courses.POST("/:id/groups/:group/labs/:lab/grade", h.Grade)
	}

	router.GET("/ping", h.Ping)
	router.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	return router
}
