// Package config loads alphadata configuration from YAML.
//
// Values may reference the environment with ${VAR_NAME} or
// ${VAR_NAME:-fallback}:
//
//	datasets:
//	  source: s3
//	  bucket: ${ALPHADATA_BUCKET}
//	  prefix: daily/
//	  region: ${AWS_REGION:-us-east-1}
//	  index_column: auto
//	  preload: [close, volume]
//	registry:
//	  preload_concurrency: 4
//	logging:
//	  level: debug
//	  encoding: console
//	observability:
//	  enable_metrics: true
//	  metrics_addr: ":9090"
//
// Keys absent from the file keep the values from Default. The CLI layers
// flags and ALPHADATA_* environment variables on top through viper.
package config
