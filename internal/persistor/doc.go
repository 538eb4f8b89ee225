// Package persistor turns message-bus commands into KairosDB REST calls.
//
// Architecture:
//
//	bus message ──▶ Service ──▶ Router ──▶ Handler ──▶ kairosdb.Client ──▶ KairosDB
//	                  │            │           │
//	                  │            │           └── Mirror (optional, add_data_points only)
//	                  │            └── Metrics, Recorder (optional)
//	                  └── reply on reply_to or <address>/reply/<request_id>
//
// # Commands
//
// A command is a JSON object with an "action" and the fields that action
// needs:
//
//	action               fields          backend call
//	add_data_points      datapoints      POST   /api/v1/datapoints            (204)
//	delete_data_points   query           POST   /api/v1/datapoints/delete     (204)
//	delete_metric        metric_name     DELETE /api/v1/metric/{metric_name}  (204)
//	query_metrics        query           POST   /api/v1/datapoints/query      (200)
//	query_metric_tags    query           POST   /api/v1/datapoints/query/tags (200)
//	list_metric_names    -               GET    /api/v1/metricnames           (200)
//	list_tag_names       -               GET    /api/v1/tagnames              (200)
//	list_tag_values      -               GET    /api/v1/tagvalues             (200)
//	version              -               GET    /api/v1/version               (200)
//
// Every command yields exactly one Result: {"status":"ok", ...body} on
// success, {"status":"error","message":"..."} otherwise. Handlers never
// retry.
//
// # Thread Safety
//
// Router and Service are safe for concurrent use. Handlers share one
// backend client.
//
// # Usage
//
//	backend := kairosdb.New(cfg.BackendURL(), cfg.GetBackendTimeout())
//	router := persistor.NewRouter(backend, persistor.RouterOptions{Logger: log})
//
//	result := router.Dispatch(ctx, persistor.NewCommand(map[string]any{"action": "version"}))
//	fmt.Println(result.Status)
package persistor
