package metrics

import "go.opentelemetry.io/otel/attribute"

func attrMethod(method string) attribute.KeyValue {
	return attribute.String("gluetube.rpc.method", method)
}

func attrSuccess(success bool) attribute.KeyValue {
	return attribute.Bool("gluetube.run.success", success)
}
