// Chart viewer for the logged sensor history. Runs on any machine with
// read access to the controller's SQLite file; it never touches the
// hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimlessaugustus/iot-agriculture/storage"
)

const maxChartPoints = 200

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dsn := flag.String("dsn", "sensor_data.db", "SQLite database path")
	flag.Parse()

	router := gin.New()
	router.LoadHTMLGlob("static/html/*")
	router.Static("/static", "./static")
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.Recovery())

	store, err := storage.Open(*dsn)
	if err != nil {
		log.Fatalln("Error opening database:", err)
	}
	defer store.Close()

	router.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "home.html", gin.H{})
	})

	router.GET("/api/sensor_data", func(c *gin.Context) {
		readings, err := store.RecentReadings(maxChartPoints)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, readings)
	})

	router.Run(*addr)
}
