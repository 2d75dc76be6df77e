package tracing

type Option func(*Provider)

func ServiceName(name string) Option {
	return func(p *Provider) {
		p.serviceName = name
	}
}

func Environment(env string) Option {
	return func(p *Provider) {
		p.environment = env
	}
}

func Insecure(insecure bool) Option {
	return func(p *Provider) {
		p.insecure = insecure
	}
}

func SampleRatio(ratio float64) Option {
	return func(p *Provider) {
		p.sampleRatio = ratio
	}
}
