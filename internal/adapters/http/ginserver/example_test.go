package ginserver_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/adapters/http/ginserver"
	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/services/rates"
)

func ExampleNewRouter_rates() {
	gin.SetMode(gin.TestMode)
	engine := rates.NewEngine(3, nil)
	engine.Record(domain.TrafficTopic(), 1024, 4096, time.Unix(0, 0).UTC())

	router := ginserver.NewRouter(ginserver.NewHandler(ginserver.Deps{Rates: engine}), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rates/traffic", nil))
	fmt.Println(rec.Code)
	fmt.Println(rec.Body.String())

	// Output:
	// 200
	// {"updated":"1970-01-01T00:00:00Z","topic":"traffic","current":{"at":"1970-01-01T00:00:00Z","upload":1024,"download":4096},"upload":[1024],"download":[4096],"value":0}
}
