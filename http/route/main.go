package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/dicomlite/dicomlite/http/controller"
	middlewares "github.com/dicomlite/dicomlite/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group("/v1")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		studyRoutes := apiRoutes.Group("/studies")
		{
			studyRoutes.POST("", ctrl.StoreInstances)
			studyRoutes.PUT("", ctrl.UpsertInstances)
			studyRoutes.DELETE("/:study", ctrl.DeleteStudy)
			studyRoutes.GET("/:study/series/:series/instances/:instance", ctrl.RetrieveInstance)
			studyRoutes.DELETE("/:study/series/:series/instances/:instance", ctrl.DeleteInstance)
		}

		feedRoutes := apiRoutes.Group("/changefeed")
		{
			feedRoutes.GET("", ctrl.GetChangeFeed)
			feedRoutes.GET("/latest", ctrl.GetChangeFeedLatest)
		}
	}
	return r
}
