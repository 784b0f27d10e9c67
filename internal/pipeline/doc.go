// Package pipeline собирает граф агентов Synapse из декларативного определения.
//
// Определение хранится в HCL (встроенный pipeline.hcl или файл из
// SYNAPSE_PIPELINE_FILE):
//
//	entry = "ado_connector"
//
//	step "legacy_agent" {
//	  next = "sentinel"
//	}
//
//	step "sentinel" {
//	  retry {
//	    producer = "backend_coder"
//	    success  = "deployment_engine"
//	    give_up  = "deployment_engine"
//	    ceiling  = 2
//	  }
//	}
//
//	step "deployment_engine" {
//	  next = end
//	}
//
// Каждый step должен существовать в реестре агентов (steps.Registry).
// NewRecord строит начальный Record run из Input.
package pipeline
