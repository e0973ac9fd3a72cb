package server

import (
	"net/http"

	"enveye/internal/gateway/handler"
	"enveye/internal/gateway/middleware"
)

func NewMux(
	snapshotHandler *handler.SnapshotHandler,
	diagnosisHandler *handler.DiagnosisHandler,
	evidenceHandler *handler.EvidenceHandler,
	collectHandler *handler.CollectHandler,
) http.Handler {
	mux := http.NewServeMux()

	// Snapshot intake and comparison
	mux.HandleFunc("POST /upload_snapshot", snapshotHandler.HandleUpload)
	mux.HandleFunc("POST /compare", snapshotHandler.HandleCompare)
	mux.HandleFunc("GET /list_snapshots", snapshotHandler.HandleList)
	mux.HandleFunc("GET /download_snapshot/{filename}", snapshotHandler.HandleDownload)
	mux.HandleFunc("DELETE /snapshot/{filename}", snapshotHandler.HandleDelete)

	// Diagnosis sessions
	mux.HandleFunc("POST /start_diagnosis", diagnosisHandler.HandleStart)
	mux.HandleFunc("POST /followup", diagnosisHandler.HandleFollowup)
	mux.HandleFunc("GET /session/{session_id}", diagnosisHandler.HandleView)
	mux.HandleFunc("POST /session/{session_id}/close", diagnosisHandler.HandleClose)
	mux.HandleFunc("GET /session/{session_id}/ws", diagnosisHandler.HandleSessionWS)
	mux.HandleFunc("POST /flag", diagnosisHandler.HandleFlag)

	// Evidence utilities
	mux.HandleFunc("POST /ocr", evidenceHandler.HandleOCR)
	mux.HandleFunc("POST /read_log", evidenceHandler.HandleReadLog)

	// Remote collection
	mux.HandleFunc("POST /remote_collect", collectHandler.HandleRemoteCollect)

	// Middleware
	return middleware.CORS(mux)
}
